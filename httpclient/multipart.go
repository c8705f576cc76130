package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
)

// FileUpload represents a file to be uploaded in a multipart request.
// Either Path or Reader provides the content; Path is opened at encode time.
type FileUpload struct {
	// FieldName is the form field name for the file.
	FieldName string

	// FileName is the name of the file as it appears in the upload.
	// Defaults to the base name of Path.
	FileName string

	Path   string
	Reader io.Reader
}

// MultipartForm is a request body encoded as multipart/form-data.
//
// Example:
//
//	form := httpclient.NewMultipartForm().
//	    AddField("title", "Q4 Report").
//	    AddFile("document", "/path/to/report.pdf")
//	resp, err := client.Do(ctx, httpclient.MethodPostMultipart, "/upload", form, nil)
type MultipartForm struct {
	Fields map[string]string
	Files  []FileUpload
}

// NewMultipartForm creates an empty form.
func NewMultipartForm() *MultipartForm {
	return &MultipartForm{Fields: make(map[string]string)}
}

// AddField sets a form field.
func (f *MultipartForm) AddField(key, value string) *MultipartForm {
	if f.Fields == nil {
		f.Fields = make(map[string]string)
	}
	f.Fields[key] = value
	return f
}

// AddFile adds a file upload read from path when the request is encoded.
func (f *MultipartForm) AddFile(fieldName, path string) *MultipartForm {
	f.Files = append(f.Files, FileUpload{
		FieldName: fieldName,
		FileName:  filepath.Base(path),
		Path:      path,
	})
	return f
}

// AddFileReader adds a file upload from an io.Reader.
func (f *MultipartForm) AddFileReader(fieldName, fileName string, r io.Reader) *MultipartForm {
	f.Files = append(f.Files, FileUpload{
		FieldName: fieldName,
		FileName:  fileName,
		Reader:    r,
	})
	return f
}

// encode writes fields in key order, then files in insertion order.
func (f *MultipartForm) encode() (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	keys := make([]string, 0, len(f.Fields))
	for k := range f.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := writer.WriteField(k, f.Fields[k]); err != nil {
			return nil, "", err
		}
	}

	for _, file := range f.Files {
		if err := writeFile(writer, file); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

func writeFile(writer *multipart.Writer, file FileUpload) error {
	reader := file.Reader
	if reader == nil {
		if file.Path == "" {
			return fmt.Errorf("multipart file %q has no content", file.FieldName)
		}
		fh, err := os.Open(file.Path)
		if err != nil {
			return err
		}
		defer fh.Close()
		reader = fh
	}

	name := file.FileName
	if name == "" {
		name = filepath.Base(file.Path)
	}
	part, err := writer.CreateFormFile(file.FieldName, name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, reader)
	return err
}
