package filter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tkingovr/postguard/api"
)

// ErrInvalidPost is returned when a request body is not a JSON object with
// a string content field.
var ErrInvalidPost = errors.New("invalid post")

// ParseFilter decodes the post body and extracts the author and text.
// Field names may be dotted paths into nested objects ("post.body").
// A body that is not a usable post is denied with rule "parse" so later
// bookkeeping filters still record it.
type ParseFilter struct {
	contentField string
	agentField   string
}

func NewParseFilter(contentField, agentField string) *ParseFilter {
	return &ParseFilter{contentField: contentField, agentField: agentField}
}

func (f *ParseFilter) Name() string { return "parse" }

func (f *ParseFilter) Process(_ context.Context, fc *FilterContext) error {
	if err := f.parse(fc); err != nil {
		fc.Invalid = err
		fc.halt(f.Name(), api.VerdictDeny, f.Name(), err.Error())
	}
	return nil
}

func (f *ParseFilter) parse(fc *FilterContext) error {
	var post map[string]any
	dec := json.NewDecoder(bytes.NewReader(fc.Raw))
	dec.UseNumber()
	if err := dec.Decode(&post); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPost, err)
	}
	if post == nil {
		return fmt.Errorf("%w: body is not a JSON object", ErrInvalidPost)
	}
	fc.Post = post

	if f.agentField != "" {
		if v, ok := lookup(post, f.agentField); ok {
			switch a := v.(type) {
			case string:
				fc.Agent = a
			case json.Number:
				fc.Agent = a.String()
			}
		}
	}

	v, ok := lookup(post, f.contentField)
	if !ok {
		return fmt.Errorf("%w: missing field %q", ErrInvalidPost, f.contentField)
	}
	content, ok := v.(string)
	if !ok {
		return fmt.Errorf("%w: field %q is not a string", ErrInvalidPost, f.contentField)
	}
	fc.Content = content
	return nil
}

func lookup(m map[string]any, field string) (any, bool) {
	parts := strings.Split(field, ".")
	var cur any = m
	for _, p := range parts {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
