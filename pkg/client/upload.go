package client

import (
	"io"
	"mime/multipart"

	"github.com/aiodash/aiodash/internal/metrics"
)

// Form is a multipart body built from text fields and file parts. The body
// is streamed, so a Form can be sent once.
type Form struct {
	fields []formField
	files  []formFile
}

type formField struct {
	name, value string
}

type formFile struct {
	field, filename string
	r               io.Reader
}

// NewForm returns an empty form.
func NewForm() *Form {
	return &Form{}
}

// Set adds a text field. Empty values are still sent.
func (f *Form) Set(name, value string) *Form {
	f.fields = append(f.fields, formField{name: name, value: value})
	return f
}

// AddFile adds a file part read from r.
func (f *Form) AddFile(field, filename string, r io.Reader) *Form {
	f.files = append(f.files, formFile{field: field, filename: filename, r: r})
	return f
}

// reader starts writing the form into a pipe. The writer goroutine ends when
// the body is fully consumed or the reader side is closed.
func (f *Form) reader() (io.Reader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(f.write(mw))
	}()
	return pr, mw.FormDataContentType()
}

func (f *Form) write(mw *multipart.Writer) error {
	for _, field := range f.fields {
		if err := mw.WriteField(field.name, field.value); err != nil {
			return err
		}
	}
	for _, file := range f.files {
		part, err := mw.CreateFormFile(file.field, file.filename)
		if err != nil {
			return err
		}
		n, err := io.Copy(part, file.r)
		metrics.AddUploadBytes(n)
		if err != nil {
			return err
		}
	}
	return mw.Close()
}
