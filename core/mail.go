package core

import (
	"bytes"
	"encoding/base64"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/pkg/errors"
)

type (
	tmplCacheEntry map[string]interface{}    // {ext: *Template}
	tmplCache      map[string]tmplCacheEntry // {name: {tmplCacheEntry}}

	// MailTemplates holds the parsed email templates of a templates directory.
	MailTemplates struct {
		fsys    fs.FS
		dir     string
		strict  bool
		once    sync.Once
		cache   tmplCache
		loadErr error
		md      *converter.Converter
	}

	Attachment struct {
		Content     *bytes.Buffer
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// NewMailTemplates prepares the templates found in `dir` of `fsys`. Parsing is lazy.
// Files starting with "_" are base layouts; ".txt" and ".gohtml" are supported.
func NewMailTemplates(fsys fs.FS, dir string, strict bool) *MailTemplates {
	return &MailTemplates{
		fsys:   fsys,
		dir:    dir,
		strict: strict,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

func (mt *MailTemplates) get(name, ext string) (interface{}, bool) {
	entry, ok := mt.cache[name]
	if !ok {
		return nil, ok
	}
	tmpl, ok := entry[ext]
	return tmpl, ok
}

func (mt *MailTemplates) parse() {
	mt.cache = make(tmplCache)

	fps, err := fs.Glob(mt.fsys, path.Join(mt.dir, "*"))
	if err != nil {
		mt.loadErr = errors.Wrap(err, "listing email templates")
		return
	}

	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := mt.cache[name]
		if !ok {
			entry = make(tmplCacheEntry)
			mt.cache[name] = entry
		}
		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(mt.fsys, path.Join(mt.dir, "_base.txt"), fp)
			if err != nil {
				mt.loadErr = errors.Wrapf(err, "parsing %s", fp)
				return
			}
			if mt.strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry[ext] = tmpl
		} else {
			tmpl, err := htmltmpl.ParseFS(mt.fsys, path.Join(mt.dir, "_base.gohtml"), fp)
			if err != nil {
				mt.loadErr = errors.Wrapf(err, "parsing %s", fp)
				return
			}
			if mt.strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry[ext] = tmpl
		}
	}
}

// Render fills TextContent and HTMLContent of `m`.
// When only an HTML template exists, the text part is derived from the rendered HTML as markdown.
func (mt *MailTemplates) Render(m *EmailMessage, ctxData ContextData) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}
	mt.once.Do(mt.parse) // only parse once during first render
	if mt.loadErr != nil {
		return mt.loadErr
	}
	ctxData.Data = m.TemplateData

	if m.TextContent == "" {
		if entry, ok := mt.get(m.TemplateName, ".txt"); ok {
			if tmpl, ok := entry.(*texttmpl.Template); ok {
				var buff bytes.Buffer
				if err := tmpl.ExecuteTemplate(&buff, "base", ctxData); err != nil {
					return errors.Wrap(err, "rendering text template")
				}
				m.TextContent = buff.String()
			}
		}
	}

	if entry, ok := mt.get(m.TemplateName, ".gohtml"); ok {
		if tmpl, ok := entry.(*htmltmpl.Template); ok {
			var buff bytes.Buffer
			if err := tmpl.ExecuteTemplate(&buff, "base", ctxData); err != nil {
				return errors.Wrap(err, "rendering html template")
			}
			m.HTMLContent = buff.String()
		}
	}

	if m.TextContent == "" && m.HTMLContent != "" {
		text, err := mt.md.ConvertString(m.HTMLContent)
		if err != nil {
			return errors.Wrap(err, "converting html to text")
		}
		m.TextContent = text
	}
	return nil
}

func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading attachment")
	}
	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}

	// base64 encode content
	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err := encoder.Write(content); err != nil {
		return errors.Wrap(err, "encoding attachment")
	}
	if err := encoder.Close(); err != nil {
		return errors.Wrap(err, "encoding attachment")
	}

	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }
