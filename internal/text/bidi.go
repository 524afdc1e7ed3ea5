package text

// IsRTL reports whether s contains right-to-left script. Only Hebrew and
// Arabic blocks (including presentation forms) are recognized.
func IsRTL(s string) bool {
	for _, r := range s {
		if (r >= 0x0590 && r <= 0x06FF) || (r >= 0xFB50 && r <= 0xFDFF) || (r >= 0xFE70 && r <= 0xFEFF) {
			return true
		}
	}
	return false
}
