package policy

import "unicode"

// Classification 是一个单词按字符类别的计数
type Classification struct {
	Upper             int
	Lower             int
	Numeric           int
	Punctuation       int
	Whitespace        int
	LeadingAlphabetic int
}

// Letters 返回大小写字母总数
func (c Classification) Letters() int {
	return c.Upper + c.Lower
}

// Classify 从左到右统计单词中各类字符的数量。
// 夹在两个数字之间的标点（如 123,456.78 中的 , 和 .）计为数字。
func Classify(word string) Classification {
	var c Classification
	if word == "" {
		return c
	}

	runes := []rune(word)
	leading := true

	for i, r := range runes {
		if leading {
			if unicode.IsLetter(r) {
				c.LeadingAlphabetic++
			} else {
				leading = false
			}
		}

		switch {
		case unicode.IsUpper(r):
			c.Upper++
		case unicode.IsLower(r):
			c.Lower++
		case unicode.IsSpace(r):
			c.Whitespace++
		case unicode.IsDigit(r):
			c.Numeric++
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			if i > 0 && i < len(runes)-1 && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
				c.Numeric++
			} else {
				c.Punctuation++
			}
		}
	}

	return c
}
