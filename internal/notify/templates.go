package notify

import (
	"bytes"
	"embed"
	"fmt"
	htmltmpl "html/template"
	texttmpl "text/template"
)

//go:embed templates/*.txt templates/*.gohtml
var templateFS embed.FS

var (
	textTemplates = texttmpl.Must(texttmpl.ParseFS(templateFS, "templates/*.txt"))
	htmlTemplates = htmltmpl.Must(htmltmpl.ParseFS(templateFS, "templates/*.gohtml"))
)

type templateContext struct {
	AppURL string
	Data   any
}

// render executes the text and html variants of the named template.
func render(name, appURL string, data any) (text, html string, err error) {
	ctx := templateContext{AppURL: appURL, Data: data}

	var textBuf bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&textBuf, name+".txt", ctx); err != nil {
		return "", "", fmt.Errorf("render %s text: %w", name, err)
	}
	var htmlBuf bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&htmlBuf, name+".gohtml", ctx); err != nil {
		return "", "", fmt.Errorf("render %s html: %w", name, err)
	}
	return textBuf.String(), htmlBuf.String(), nil
}
