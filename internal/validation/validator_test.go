package validation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klass-lk/postboard/internal/model"
)

type fakeTitles struct {
	owners map[string]int64
	err    error
}

func (f fakeTitles) ExistsByTitle(ctx context.Context, title string, excludeID int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	owner, ok := f.owners[title]
	return ok && owner != excludeID, nil
}

func TestValidator_Validate(t *testing.T) {
	titles := fakeTitles{owners: map[string]int64{"Existing": 3}}

	tests := []struct {
		name      string
		input     model.PostInput
		excludeID int64
		expected  Errors
	}{
		{
			name:  "valid input",
			input: model.PostInput{Title: "Hello", Content: "World"},
		},
		{
			name:     "missing title",
			input:    model.PostInput{Content: "World"},
			expected: Errors{"title": {"The title field is required."}},
		},
		{
			name:     "missing content",
			input:    model.PostInput{Title: "Hello"},
			expected: Errors{"content": {"The content field is required."}},
		},
		{
			name:  "missing both",
			input: model.PostInput{},
			expected: Errors{
				"title":   {"The title field is required."},
				"content": {"The content field is required."},
			},
		},
		{
			name:     "title too long",
			input:    model.PostInput{Title: strings.Repeat("a", 256), Content: "World"},
			expected: Errors{"title": {"The title may not be greater than 255 characters."}},
		},
		{
			name:  "title at limit counts characters not bytes",
			input: model.PostInput{Title: strings.Repeat("é", 255), Content: "World"},
		},
		{
			name:     "title taken on create",
			input:    model.PostInput{Title: "Existing", Content: "World"},
			expected: Errors{"title": {TitleTakenMessage}},
		},
		{
			name:      "title taken by another post on update",
			input:     model.PostInput{Title: "Existing", Content: "World"},
			excludeID: 4,
			expected:  Errors{"title": {TitleTakenMessage}},
		},
		{
			name:      "own title on update",
			input:     model.PostInput{Title: "Existing", Content: "World"},
			excludeID: 3,
		},
		{
			name:     "taken title with missing content reports both",
			input:    model.PostInput{Title: "Existing"},
			expected: Errors{"title": {TitleTakenMessage}, "content": {"The content field is required."}},
		},
	}

	v := New(titles)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs, err := v.Validate(context.Background(), tt.input, tt.excludeID)
			require.NoError(t, err)
			if tt.expected == nil {
				assert.Nil(t, errs)
				return
			}
			assert.Equal(t, tt.expected, errs)
		})
	}
}

func TestValidator_LookupFailure(t *testing.T) {
	lookupErr := errors.New("store down")
	v := New(fakeTitles{err: lookupErr})

	errs, err := v.Validate(context.Background(), model.PostInput{Title: "Hello", Content: "World"}, 0)
	assert.ErrorIs(t, err, lookupErr)
	assert.Nil(t, errs)
}

func TestErrors_Has(t *testing.T) {
	errs := Errors{"title": {"x"}}
	assert.True(t, errs.Has("title"))
	assert.False(t, errs.Has("content"))
}
