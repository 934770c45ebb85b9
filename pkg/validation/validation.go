// Package validation configures the shared request validator and turns its errors into field messages.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/noah-isme/genius-academy-api/internal/models"
)

const (
	phoneTag          = "phone"
	usernameTag       = "username"
	educationLevelTag = "education_level"
	relationshipTag   = "relationship"
	adminRoleTag      = "admin_role"
	genderTag         = "gender"
	maritalStatusTag  = "marital_status"
	teachingDomainTag = "teaching_domain"
	notBlankTag       = "notblank"
)

const (
	minPhoneLength = 10
	maxPhoneLength = 20
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9@.+_-]+$`)

var customMessages = map[string]string{
	phoneTag:          "{0} must start with + and contain 10 to 20 characters",
	usernameTag:       "{0} may only contain letters, digits and @ . + - _",
	educationLevelTag: "{0} must be one of PRIMARY, SECONDARY, HIGH",
	relationshipTag:   "{0} must be one of FATHER, MOTHER, BROTHER, SISTER, GRANDMOTHER, GRANDFATHER, OTHER",
	adminRoleTag:      "{0} must be one of super_admin, academic_admin, secretary, finance",
	genderTag:         "{0} must be M or F",
	maritalStatusTag:  "{0} must be one of SINGLE, MARRIED, DIVORCED, WIDOWED",
	teachingDomainTag: "{0} must be SCIENTIFIC or LITERARY",
	notBlankTag:       "{0} cannot be blank",
}

// Validator bundles the validator with its English translator.
type Validator struct {
	*validator.Validate
	translator ut.Translator
}

// New builds a validator that reports JSON field names and knows the domain tags.
func New() *Validator {
	v := validator.New()

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(v, trans)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = fld.Tag.Get("form")
		}
		return name
	})

	_ = v.RegisterValidation(phoneTag, validatePhone)
	_ = v.RegisterValidation(usernameTag, func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation(educationLevelTag, oneOf(models.LevelPrimary, models.LevelSecondary, models.LevelHigh))
	_ = v.RegisterValidation(relationshipTag, oneOf(
		models.RelationFather, models.RelationMother, models.RelationBrother, models.RelationSister,
		models.RelationGrandmother, models.RelationGrandfather, models.RelationOther,
	))
	_ = v.RegisterValidation(adminRoleTag, oneOf(models.AdminSuper, models.AdminAcademic, models.AdminSecretary, models.AdminFinance))
	_ = v.RegisterValidation(genderTag, oneOf(models.GenderMale, models.GenderFemale))
	_ = v.RegisterValidation(maritalStatusTag, oneOf(models.MaritalSingle, models.MaritalMarried, models.MaritalDivorced, models.MaritalWidowed))
	_ = v.RegisterValidation(teachingDomainTag, oneOf(models.DomainScientific, models.DomainLiterary))
	_ = v.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	for tag, message := range customMessages {
		tag, message := tag, message
		_ = v.RegisterTranslation(tag, trans,
			func(t ut.Translator) error { return t.Add(tag, message, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				msg, _ := t.T(tag, fe.Field())
				return msg
			},
		)
	}

	return &Validator{Validate: v, translator: trans}
}

// Fields converts a validation failure into field -> message. Other errors yield nil.
func (v *Validator) Fields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := fe.Namespace()
		if i := strings.Index(key, "."); i >= 0 {
			key = key[i+1:]
		}
		fields[key] = fe.Translate(v.translator)
	}
	return fields
}

// validatePhone requires an international prefix and a length the phone column can hold.
func validatePhone(fl validator.FieldLevel) bool {
	phone := strings.TrimSpace(fl.Field().String())
	return strings.HasPrefix(phone, "+") && len(phone) >= minPhoneLength && len(phone) <= maxPhoneLength
}

func oneOf[T ~string](allowed ...T) validator.Func {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[string(a)] = struct{}{}
	}
	return func(fl validator.FieldLevel) bool {
		_, ok := set[fl.Field().String()]
		return ok
	}
}
