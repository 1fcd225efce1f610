package textutil

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

const minDetectConfidence = 50

// DecodeText converts raw source bytes into normalized UTF-8 text. Byte order
// marks are honoured, valid UTF-8 is taken as is, and anything else goes
// through charset detection with GB18030 as the fallback. Line endings are
// normalized to \n and the result is NFC-composed. The detected charset name
// is returned for logging.
func DecodeText(data []byte) (string, string, error) {
	if len(data) == 0 {
		return "", "utf-8", nil
	}
	text, charset, err := decodeBytes(data)
	if err != nil {
		return "", charset, err
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return norm.NFC.String(text), charset, nil
}

func decodeBytes(data []byte) (string, string, error) {
	switch {
	case bytes.HasPrefix(data, utf8BOM):
		return string(data[len(utf8BOM):]), "utf-8", nil
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), data, "utf-16le")
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return decodeWith(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), data, "utf-16be")
	case utf8.Valid(data):
		return string(data), "utf-8", nil
	}

	name := "gb18030"
	if result, err := chardet.NewTextDetector().DetectBest(data); err == nil && result != nil && result.Confidence >= minDetectConfidence {
		name = strings.ToLower(result.Charset)
	}
	enc, label := encodingFor(name)
	return decodeWith(enc, data, label)
}

func encodingFor(charset string) (encoding.Encoding, string) {
	switch charset {
	case "big5":
		return traditionalchinese.Big5, "big5"
	case "shift_jis":
		return japanese.ShiftJIS, "shift_jis"
	case "euc-jp":
		return japanese.EUCJP, "euc-jp"
	case "euc-kr":
		return korean.EUCKR, "euc-kr"
	case "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), "utf-16le"
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), "utf-16be"
	default:
		// GB18030 is a superset of GBK and GB2312, the common case for
		// simplified Chinese sources mislabelled by detectors.
		return simplifiedchinese.GB18030, "gb18030"
	}
}

func decodeWith(enc encoding.Encoding, data []byte, label string) (string, string, error) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", label, fmt.Errorf("decode %s: %w", label, err)
	}
	return string(out), label, nil
}
