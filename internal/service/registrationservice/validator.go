package registrationservice

import (
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"impulsame/internal/domain"
)

// requiredFields lista os campos obrigatórios da fase um, na ordem canônica
// usada quando um campo obrigatório não aparece na submissão.
var requiredFields = []string{"email", "full_name", "ci", "phone1", "monthly_income", "activity_type"}

// minimumAge é a idade mínima exigida quando birth_date é informado.
const minimumAge = 18

var (
	ciRe    = regexp.MustCompile(`^[A-Za-z]-[0-9]+$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

// fieldRule valida um único campo. Retorna a razão da falha ou "" se válido.
// Todas as regras são locais ao campo; não há regras cruzadas.
type fieldRule func(value string, now time.Time) string

var fieldRules = map[string]fieldRule{
	"email": func(value string, _ time.Time) string {
		if strings.TrimSpace(value) == "" {
			return "is required"
		}
		addr, err := mail.ParseAddress(value)
		if err != nil || addr.Address != value {
			return "must be a valid email address"
		}
		return ""
	},
	"full_name": func(value string, _ time.Time) string {
		if strings.TrimSpace(value) == "" {
			return "is required"
		}
		return ""
	},
	"ci": func(value string, _ time.Time) string {
		if strings.TrimSpace(value) == "" {
			return "is required"
		}
		if !ciRe.MatchString(value) {
			return "must match the format <letter>-<digits>"
		}
		return ""
	},
	"phone1": func(value string, _ time.Time) string {
		if strings.TrimSpace(value) == "" {
			return "is required"
		}
		if !phoneRe.MatchString(value) {
			return "must be a valid phone number"
		}
		return ""
	},
	"phone2": func(value string, _ time.Time) string {
		// Opcional: só é validado quando informado.
		if value == "" {
			return ""
		}
		if !phoneRe.MatchString(value) {
			return "must be a valid phone number"
		}
		return ""
	},
	"monthly_income": func(value string, _ time.Time) string {
		if strings.TrimSpace(value) == "" {
			return "is required"
		}
		income, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return "must be a decimal number"
		}
		if income < 0 {
			return "must be non-negative"
		}
		return ""
	},
	"activity_type": func(value string, _ time.Time) string {
		if strings.TrimSpace(value) == "" {
			return "is required"
		}
		if !domain.IsValidActivityType(value) {
			return "must be one of: dependencia, independiente, jubilado, otro"
		}
		return ""
	},
	"birth_date": func(value string, now time.Time) string {
		// Opcional: só é validado quando informado.
		if value == "" {
			return ""
		}
		birth, err := time.Parse("2006-01-02", value)
		if err != nil {
			return "must be a date in the format YYYY-MM-DD"
		}
		if !birth.Before(now) {
			return "must be in the past"
		}
		if age(birth, now) < minimumAge {
			return "must imply an age of at least 18 years"
		}
		return ""
	},
}

// age calcula a idade completa em anos na data de referência.
func age(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	anniversary := birth.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}

// ValidateRegistration é o Validador da fase um: recebe a submissão bruta e
// retorna o perfil validado ou uma lista não-vazia e ordenada de erros por
// campo. O perfil nunca é parcialmente populado quando há erro. Campos
// desconhecidos são ignorados. A ordem dos erros segue a ordem de submissão;
// campos obrigatórios ausentes entram ao final, na ordem canônica.
func ValidateRegistration(submission *domain.RawSubmission, now time.Time) (domain.RegistrationProfile, []domain.FieldError) {
	var errs []domain.FieldError
	seen := make(map[string]bool)

	for _, field := range submission.Fields() {
		rule, known := fieldRules[field]
		if !known {
			// Campos desconhecidos ou de texto livre: ignorados, não rejeitados.
			continue
		}
		seen[field] = true
		value, _ := submission.Get(field)
		if reason := rule(value, now); reason != "" {
			errs = append(errs, domain.FieldError{Field: field, Reason: reason})
		}
	}

	// Obrigatórios que nem sequer foram submetidos.
	for _, field := range requiredFields {
		if !seen[field] {
			errs = append(errs, domain.FieldError{Field: field, Reason: "is required"})
		}
	}

	if len(errs) > 0 {
		return domain.RegistrationProfile{}, errs
	}

	get := func(field string) string {
		value, _ := submission.Get(field)
		return value
	}

	profile := domain.RegistrationProfile{
		Email:         get("email"),
		FullName:      strings.TrimSpace(get("full_name")),
		CI:            get("ci"),
		Phone1:        get("phone1"),
		Phone2:        get("phone2"),
		Address:       get("address"),
		Instagram:     get("instagram"),
		Facebook:      get("facebook"),
		Tiktok:        get("tiktok"),
		Ref1Name:      get("ref1_name"),
		Ref1Relation:  get("ref1_relation"),
		Ref2Name:      get("ref2_name"),
		Ref2Relation:  get("ref2_relation"),
		MonthlyIncome: get("monthly_income"),
		ActivityType:  domain.ActivityType(get("activity_type")),
		Position:      get("position"),
		BirthDate:     get("birth_date"),
	}

	// Referência informada sem relação recebe a relação padrão.
	if profile.Ref1Name != "" && profile.Ref1Relation == "" {
		profile.Ref1Relation = "otro"
	}
	if profile.Ref2Name != "" && profile.Ref2Relation == "" {
		profile.Ref2Relation = "otro"
	}

	return profile, nil
}
