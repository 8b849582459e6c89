package validation

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	notPastTag  = "notpast"
	notPastText = "{0} cannot be in the past"
)

type updateKey struct{}

// ForUpdate 标记本次校验为更新：已发生的日期允许保留（notpast 只约束新建）
func ForUpdate(ctx context.Context) context.Context {
	return context.WithValue(ctx, updateKey{}, true)
}

func isUpdate(ctx context.Context) bool {
	v, _ := ctx.Value(updateKey{}).(bool)
	return v
}

// FieldErrors 字段名（JSON 名）到错误信息
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fe[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator 表单字段级校验（仅用于交互提示，后端仍是最终裁决）
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
	now        func() time.Time
}

// New instantiates the validator for use.
func New() *Validator {
	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}

	// Register the english error messages for validation errors.
	_en := en.New()
	uni := ut.New(_en, _en)
	v.translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v.validate, v.translator)

	// Use JSON tag names for errors instead of Go struct names.
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.validate.RegisterValidationCtx(notPastTag, v.notPast)
	v.registerTranslation(notPastTag, notPastText)

	return v
}

// registerTranslation registers a custom translation for the specified validation tag.
func (v *Validator) registerTranslation(tag, text string) {
	_ = v.validate.RegisterTranslation(
		tag, v.translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// notPast 日期不得早于今天（按本地日期比较）
func (v *Validator) notPast(ctx context.Context, fl validator.FieldLevel) bool {
	if isUpdate(ctx) {
		return true
	}
	t, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}
	now := v.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return !t.In(now.Location()).Before(today)
}

// Struct 校验结构体，返回 FieldErrors 或 nil
func (v *Validator) Struct(ctx context.Context, s interface{}) error {
	err := v.validate.StructCtx(ctx, s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		out[fieldPath(fe)] = fe.Translate(v.translator)
	}
	return out
}

// fieldPath 去掉结构体名（含嵌入的 ActivityBase），保留 JSON 路径（beneficiaries.male）
func fieldPath(fe validator.FieldError) string {
	parts := strings.Split(fe.Namespace(), ".")
	kept := parts[:0]
	for _, p := range parts {
		if p == "" || unicode.IsUpper([]rune(p)[0]) {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return fe.Field()
	}
	return strings.Join(kept, ".")
}
