package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/trezcool/investiga/core"
)

type Attachment struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// AttachmentChanges is the target set of files of a record.
// A non-nil Keep drops every current file it does not list, an empty one drops them all.
type AttachmentChanges struct {
	Keep   []string
	Remove []string
	Add    []Attachment
}

// SaveAttachments applies the field updates and the file changes to the record at path in one request.
// Either all of them are applied or none, the updated record is decoded into out.
func (c *Client) SaveAttachments(ctx context.Context, path string, fields interface{}, changes AttachmentChanges, out interface{}) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := writeAttachmentForm(w, fields, changes); err != nil {
		return &Problem{Kind: core.KindBadData, Message: err.Error()}
	}
	return c.do(ctx, http.MethodPatch, path, w.FormDataContentType(), &buf, out)
}

func writeAttachmentForm(w *multipart.Writer, fields interface{}, changes AttachmentChanges) error {
	if fields != nil {
		data, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		if err = w.WriteField("data", string(data)); err != nil {
			return err
		}
	}

	if changes.Keep != nil {
		if len(changes.Keep) == 0 {
			if err := w.WriteField("keep", ""); err != nil {
				return err
			}
		}
		for _, id := range changes.Keep {
			if err := w.WriteField("keep", id); err != nil {
				return err
			}
		}
	}
	for _, id := range changes.Remove {
		if err := w.WriteField("remove", id); err != nil {
			return err
		}
	}

	for _, a := range changes.Add {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+escapeQuotes(a.Name)+`"`)
		ctype := a.ContentType
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		h.Set("Content-Type", ctype)
		part, err := w.CreatePart(h)
		if err != nil {
			return err
		}
		if _, err = io.Copy(part, a.Content); err != nil {
			return err
		}
	}
	return w.Close()
}

func escapeQuotes(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FileURL returns the short-lived download URL of the file of the record at path.
func (c *Client) FileURL(ctx context.Context, path, fileID string) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.Get(ctx, path+"/files/"+url.PathEscape(fileID)+"/download", nil, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}
