package httpx

import (
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var supportedLanguages = []language.Tag{
	language.English,
	language.Indonesian,
}

var languageMatcher = language.NewMatcher(supportedLanguages)

func init() {
	titles := map[string]string{
		"Not Found":              "Tidak Ditemukan",
		"Duplicate":              "Data Ganda",
		"Conflict":               "Konflik",
		"Insufficient Inventory": "Stok Tidak Mencukupi",
		"Invalid State":          "Status Tidak Valid",
		"Validation Failed":      "Validasi Gagal",
		"Forbidden":              "Akses Ditolak",
		"Unauthorized":           "Tidak Terautentikasi",
		"Internal Error":         "Kesalahan Internal",
		"Too Many Requests":      "Terlalu Banyak Permintaan",
	}
	for key, msg := range titles {
		_ = message.SetString(language.Indonesian, key, msg)
	}
}

// Printer returns a message printer for the best supported match of the
// request's Accept-Language header. English is the fallback.
func Printer(r *http.Request) *message.Printer {
	return message.NewPrinter(MatchLanguage(r))
}

// MatchLanguage resolves the request language against the supported set.
func MatchLanguage(r *http.Request) language.Tag {
	if r == nil {
		return language.English
	}
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, confidence := languageMatcher.Match(tags...)
	if confidence == language.No {
		return language.English
	}
	return supportedLanguages[idx]
}
