package text

import "strings"

// Measurer returns the rendered width of s.
type Measurer func(s string) (float64, error)

// Line is a single wrapped line. Hard is set when the line ends at an
// explicit newline of the source text rather than at a wrap point.
type Line struct {
	Text  string
	Width float64
	Hard  bool
}

// Wrap greedily packs space separated words onto lines no wider than width.
// A word wider than width is placed alone on its line. Joining the lines
// with a space at soft breaks and a newline at hard breaks reproduces s.
func Wrap(s string, width float64, measure Measurer) ([]Line, error) {
	var lines []Line
	paragraphs := strings.Split(s, "\n")
	for pi, paragraph := range paragraphs {
		words := strings.Split(paragraph, " ")

		current := words[0]
		currentWidth, err := measure(current)
		if err != nil {
			return nil, err
		}
		for _, word := range words[1:] {
			candidate := current + " " + word
			w, err := measure(candidate)
			if err != nil {
				return nil, err
			}
			if w <= width {
				current, currentWidth = candidate, w
				continue
			}
			lines = append(lines, Line{Text: current, Width: currentWidth})
			if current, currentWidth = word, 0; word != "" {
				if currentWidth, err = measure(word); err != nil {
					return nil, err
				}
			}
		}
		lines = append(lines, Line{Text: current, Width: currentWidth, Hard: pi < len(paragraphs)-1})
	}
	return lines, nil
}

// Join reassembles wrapped lines into the text they were produced from.
func Join(lines []Line) string {
	var b strings.Builder
	for i, l := range lines {
		b.WriteString(l.Text)
		if i == len(lines)-1 {
			break
		}
		if l.Hard {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}
