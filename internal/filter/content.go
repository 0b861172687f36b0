package filter

import (
	"context"
	"fmt"

	"github.com/tkingovr/postguard/api"
)

// Classifier decides whether post text is safe to publish.
type Classifier interface {
	Classify(content string) api.FilterResult
}

// ContentFilter runs the content classifier. It never edits the post.
type ContentFilter struct {
	classifier Classifier
}

func NewContentFilter(c Classifier) *ContentFilter {
	return &ContentFilter{classifier: c}
}

func (f *ContentFilter) Name() string { return "content" }

func (f *ContentFilter) Process(_ context.Context, fc *FilterContext) error {
	if fc.Halted {
		return nil
	}

	fc.Result = f.classifier.Classify(fc.Content)
	if fc.Result.Blocked {
		fc.halt(f.Name(), api.VerdictDeny,
			fmt.Sprintf("content:%s:%s", fc.Result.Category, fc.Result.Rule),
			fc.Result.Reason)
		return nil
	}

	fc.Verdict = api.VerdictAllow
	return nil
}
