// Package printing renders dispatch letters: an html/template engine with
// money and date helpers, the built-in letter layouts per direction, and a
// headless Chrome converter that prints the resulting HTML to PDF.
//
// Example usage:
//
//	engine := NewTemplateEngine()
//	html, err := engine.RenderString("letter", LetterTemplate(sourcing.DirectionToSupplier), data)
//	if err != nil {
//	    return err
//	}
//
//	renderer, err := NewChromedpRenderer(&ChromedpConfig{NoSandbox: true})
//	if err != nil {
//	    return err
//	}
//	defer renderer.Close()
//
//	result, err := renderer.Render(ctx, &RenderRequest{
//	    HTML:      html,
//	    PaperSize: PaperSizeA4,
//	    Margins:   DefaultMargins(),
//	})
package printing
