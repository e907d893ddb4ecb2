package validator

import (
	"testing"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistinctOptions(t *testing.T) {
	v := govalidator.New()
	v.SetTagName("binding")
	register(v)

	ok := model.AddQuestionRequest{QuestionText: "2+2?", Options: []string{"3", "4"}, AnswerKey: "4"}
	assert.NoError(t, v.Struct(ok))

	dup := ok
	dup.Options = []string{"4", "4"}
	err := v.Struct(dup)
	require.Error(t, err)
	fields := TranslateErrors(err)
	assert.Contains(t, fields["options"], "same option twice")

	// "a" and "A" are different options.
	mixed := ok
	mixed.Options = []string{"a", "A"}
	mixed.AnswerKey = "A"
	assert.NoError(t, v.Struct(mixed))
}
