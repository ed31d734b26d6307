package dispatch

import (
	"strings"

	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
	"go.uber.org/zap"
)

// RecipientSet is the resolved audience of one dispatch
type RecipientSet struct {
	// To receives the email. It holds external addresses, or staff
	// addresses when there are none.
	To []string
	// ReplyTo holds staff addresses
	ReplyTo []string
	// Numbers receive one instant message each, in E.164
	Numbers []string
}

// HasEmail reports whether an email can be sent
func (r RecipientSet) HasEmail() bool {
	return len(r.To) > 0
}

// HasNumbers reports whether any instant message can be sent
func (r RecipientSet) HasNumbers() bool {
	return len(r.Numbers) > 0
}

// RecipientResolver merges staff contacts with caller-supplied addresses.
// External addresses are only used when live sending is enabled.
type RecipientResolver struct {
	validate      *validator.Validate
	defaultRegion string
	liveSending   bool
	logger        *zap.Logger
}

// NewRecipientResolver creates a new RecipientResolver.
// defaultRegion applies to numbers written without a country code.
func NewRecipientResolver(liveSending bool, defaultRegion string, logger *zap.Logger) *RecipientResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecipientResolver{
		validate:      validator.New(),
		defaultRegion: strings.ToUpper(defaultRegion),
		liveSending:   liveSending,
		logger:        logger,
	}
}

// Resolve builds the recipient set. Invalid entries are dropped with a warning.
func (r *RecipientResolver) Resolve(staff []sourcing.StaffMember, externalEmails, externalNumbers []string) RecipientSet {
	staffEmails := newOrderedSet()
	staffNumbers := newOrderedSet()
	for _, member := range staff {
		if email, ok := r.normalizeEmail(member.Email); ok {
			staffEmails.add(email)
		}
		if number, ok := r.normalizeNumber(member.Mobile); ok {
			staffNumbers.add(number)
		}
	}

	external := newOrderedSet()
	numbers := newOrderedSet()
	if r.liveSending {
		for _, e := range externalEmails {
			if email, ok := r.normalizeEmail(e); ok {
				external.add(email)
			}
		}
		for _, n := range externalNumbers {
			if number, ok := r.normalizeNumber(n); ok {
				numbers.add(number)
			}
		}
	} else if len(externalEmails) > 0 || len(externalNumbers) > 0 {
		r.logger.Info("Live sending disabled, external recipients ignored",
			zap.Int("emails", len(externalEmails)),
			zap.Int("numbers", len(externalNumbers)))
	}
	for _, n := range staffNumbers.items {
		numbers.add(n)
	}

	set := RecipientSet{
		ReplyTo: staffEmails.items,
		Numbers: numbers.items,
	}
	if len(external.items) > 0 {
		set.To = external.items
	} else {
		set.To = staffEmails.items
	}
	return set
}

func (r *RecipientResolver) normalizeEmail(raw string) (string, bool) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", false
	}
	if err := r.validate.Var(email, "required,email"); err != nil {
		r.logger.Warn("Dropping invalid email recipient", zap.String("email", email))
		return "", false
	}
	return email, true
}

func (r *RecipientResolver) normalizeNumber(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	parsed, err := phonenumbers.Parse(trimmed, r.defaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		r.logger.Warn("Dropping invalid message recipient", zap.String("number", trimmed))
		return "", false
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), true
}

// orderedSet keeps first-seen order, comparing case-insensitively
type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	key := strings.ToLower(v)
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.items = append(s.items, v)
}
