package freshdesk

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strconv"

	"github.com/psds-microservice/freshdesk-service/internal/model"
)

// multipartBody encodes fields and files the way Freshdesk expects for
// uploads: nested maps as name[key], lists as name[], files as attachments[].
func multipartBody(fields map[string]any, files []model.Attachment) (*body, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := writeField(w, k, fields[k]); err != nil {
			return nil, err
		}
	}

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="attachments[]"; filename=%q`, f.Filename))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("freshdesk: multipart attachment %q: %w", f.Filename, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, fmt.Errorf("freshdesk: multipart attachment %q: %w", f.Filename, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("freshdesk: closing multipart body: %w", err)
	}
	return &body{contentType: w.FormDataContentType(), data: buf.Bytes()}, nil
}

func writeField(w *multipart.Writer, name string, value any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := writeField(w, name+"["+k+"]", v[k]); err != nil {
				return err
			}
		}
		return nil
	case model.FieldBag:
		return writeField(w, name, map[string]any(v))
	case []string:
		for _, item := range v {
			if err := w.WriteField(name+"[]", item); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for _, item := range v {
			if err := writeField(w, name+"[]", item); err != nil {
				return err
			}
		}
		return nil
	case string:
		return w.WriteField(name, v)
	case bool:
		return w.WriteField(name, strconv.FormatBool(v))
	case int:
		return w.WriteField(name, strconv.Itoa(v))
	case int64:
		return w.WriteField(name, strconv.FormatInt(v, 10))
	case float64:
		return w.WriteField(name, strconv.FormatFloat(v, 'f', -1, 64))
	case Status:
		return w.WriteField(name, strconv.Itoa(int(v)))
	case Priority:
		return w.WriteField(name, strconv.Itoa(int(v)))
	}
	return w.WriteField(name, fmt.Sprint(value))
}
