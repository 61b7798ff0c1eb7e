package composer

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// TemplateName builds "<id>_<Name_With_Underscores>.jpg". The name is NFC
// normalised so accented names typed on different systems produce the same
// file, whitespace runs become single underscores and path separators are
// dropped.
func TemplateName(patientID int64, patientName string) string {
	name := norm.NFC.String(patientName)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return -1
		}
		return r
	}, name)
	parts := strings.Fields(name)
	return strconv.FormatInt(patientID, 10) + "_" + strings.Join(parts, "_") + ".jpg"
}
