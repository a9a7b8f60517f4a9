// Package validation は送信前の入力検証を提供する。
// 検証に失敗したリクエストはネットワークに送信されない。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/careerlog/internal/model"
	"github.com/hitoshi/careerlog/internal/richtext"
)

// Validator は作成・更新リクエストを検証する。
type Validator struct {
	validate *validator.Validate
}

// New はカスタムタグを登録したValidatorを生成する。
func New() *Validator {
	v := validator.New()

	// エラーのフィールド名はJSONのキー名を使う
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Dateは構造体のためrequiredが効かない。文字列表現で検証する
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(model.Date); ok {
			return d.String()
		}
		return nil
	}, model.Date{})

	_ = v.RegisterValidation("richtext", validRichText)
	_ = v.RegisterValidation("difficulty", validDifficulty)
	v.RegisterStructValidation(validateProblemUpdate, model.ProblemUpdate{})

	return &Validator{validate: v}
}

// Struct は構造体を検証する。
// 失敗した場合はフィールド別メッセージを持つ*model.APIErrorを返す。
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validation: %w", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, exists := fields[fe.Field()]; exists {
			continue
		}
		fields[fe.Field()] = message(fe)
	}
	return model.NewValidationError(fields)
}

// message は検証エラーをユーザー向けのメッセージに変換する。
func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "必須項目です"
	case "richtext":
		return "内容を入力してください"
	case "difficulty":
		return "Easy, Medium, Hard のいずれかを指定してください"
	case "url":
		return "URLの形式が正しくありません"
	case "min":
		return fmt.Sprintf("%s文字以上で入力してください", fe.Param())
	default:
		return fmt.Sprintf("値が正しくありません（%s）", fe.Tag())
	}
}

// validRichText はHTMLが表示されるテキストを含むかを検証する。
func validRichText(fl validator.FieldLevel) bool {
	return richtext.HasContent(fl.Field().String())
}

// validDifficulty は定義済みの難易度かを検証する。
func validDifficulty(fl validator.FieldLevel) bool {
	return model.Difficulty(fl.Field().String()).Valid()
}

// validateProblemUpdate は部分更新で指定されたフィールドのみを検証する。
func validateProblemUpdate(sl validator.StructLevel) {
	u := sl.Current().Interface().(model.ProblemUpdate)

	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		sl.ReportError(u.Title, "title", "Title", "required", "")
	}
	if u.Difficulty != nil && !u.Difficulty.Valid() {
		sl.ReportError(u.Difficulty, "difficulty", "Difficulty", "difficulty", "")
	}

	richFields := []struct {
		value *string
		json  string
		name  string
	}{
		{u.Situation, "situation", "Situation"},
		{u.Task, "task", "Task"},
		{u.Action, "action", "Action"},
		{u.Result, "result", "Result"},
	}
	for _, f := range richFields {
		if f.value != nil && !richtext.HasContent(*f.value) {
			sl.ReportError(f.value, f.json, f.name, "richtext", "")
		}
	}
}
