package htmlpatch

import (
	"fmt"
	"regexp"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
)

// Minifier compacts whole pages, including inline styles, scripts and
// JSON-LD. Document tags, end tags and attribute quotes are kept so the
// output still parses the same way for the link checker.
type Minifier struct {
	m *minify.M
}

// NewMinifier returns a Minifier safe for concurrent use.
func NewMinifier() *Minifier {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`), js.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`[/+]json$`), json.Minify)
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
		KeepDefaultAttrVals: true,
	})
	return &Minifier{m: m}
}

// Page minifies one HTML document.
func (mi *Minifier) Page(src []byte) ([]byte, error) {
	out, err := mi.m.Bytes("text/html", src)
	if err != nil {
		return nil, fmt.Errorf("minify html: %w", err)
	}
	return out, nil
}
