package normalize

import "regexp"

var fencedBlock = regexp.MustCompile("```(json|)\\n(?P<code>[\\S\\s]+?)\\n```")

// ExtractJSON returns the body of the first fenced code block tagged json or
// left untagged. Text without such a block is returned unchanged.
func ExtractJSON(text string) string {
	m := fencedBlock.FindStringSubmatch(text)
	if m == nil {
		return text
	}
	return m[fencedBlock.SubexpIndex("code")]
}
