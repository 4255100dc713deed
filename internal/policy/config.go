// Package policy defines the clinic's booking and persona configuration that the
// concierge reads once per turn.
package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidConfig indicates a policy document failed schema validation.
var ErrInvalidConfig = errors.New("policy: invalid config")

// Tone sets the assistant's communication style.
type Tone string

const (
	ToneWarm         Tone = "warm"
	ToneClinical     Tone = "clinical"
	ToneProfessional Tone = "professional"
)

// Guidance is the system-prompt line for the tone.
func (t Tone) Guidance() string {
	switch t {
	case ToneClinical:
		return "TONE: Clinical and professional. Focus on accuracy and patient safety."
	case ToneProfessional:
		return "TONE: Straightforward and professional. Efficient communication focused on booking."
	default:
		return "TONE: Warm and approachable. Make patients feel comfortable while staying professional."
	}
}

func (t Tone) valid() bool {
	switch t {
	case ToneWarm, ToneClinical, ToneProfessional:
		return true
	}
	return false
}

// FAQTopic is one of the fixed FAQ categories.
type FAQTopic string

const (
	TopicAddress FAQTopic = "address"
	TopicPrice   FAQTopic = "price"
	TopicPlans   FAQTopic = "plans"
)

// FAQEntry is a free-form question and answer pair.
type FAQEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// FAQ holds the clinic's canned answers.
type FAQ struct {
	Address string     `json:"address"`
	Price   string     `json:"price"`
	Plans   string     `json:"plans"`
	Entries []FAQEntry `json:"entries"`
}

// BookingPolicy carries the business rules applied to create and reschedule.
type BookingPolicy struct {
	// BusinessHours is an ordered list of windows such as "mon-fri 08:00-18:00".
	BusinessHours    []string `json:"business_hours"`
	MinNoticeMinutes *int     `json:"min_notice_minutes,omitempty"`
	AutoConfirm      *bool    `json:"auto_confirm,omitempty"`
	SlotMinutes      int      `json:"slot_minutes"`
}

// Config is the versioned policy document for a deployment.
type Config struct {
	Version         int               `json:"version"`
	Persona         string            `json:"persona"`
	Tone            Tone              `json:"tone"`
	Timezone        string            `json:"timezone"`
	FAQ             FAQ               `json:"faq"`
	Booking         BookingPolicy     `json:"booking"`
	ProviderAliases map[string]string `json:"provider_aliases"`
	Disclaimers     []string          `json:"disclaimers"`
	UpdatedAt       time.Time         `json:"updated_at"`

	windows []Window
	loc     *time.Location
}

const (
	defaultPersona    = "You are the MedSpa AI Concierge, a friendly scheduling assistant for a medical spa. You help patients check availability, book, reschedule, cancel and confirm appointments and answer basic questions about the clinic."
	defaultDisclaimer = "This is an automated scheduling assistant and does not provide medical advice."
	defaultTimezone   = "America/New_York"
	defaultMinNotice  = 60
	defaultSlot       = 30
)

// Default returns the hard-coded configuration used when none is stored or the
// stored one is invalid.
func Default() *Config {
	cfg := &Config{}
	if err := cfg.normalize(); err != nil {
		panic(fmt.Sprintf("policy: default config invalid: %v", err))
	}
	return cfg
}

// Decode parses a policy document strictly: unknown fields are rejected, missing
// fields take their defaults and the result is validated.
func Decode(data []byte) (*Config, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize applies defaults and validates in place. Callers that build a Config
// by hand must call it before use.
func (c *Config) Normalize() error {
	return c.normalize()
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.Persona) == "" {
		c.Persona = defaultPersona
	}
	if c.Tone == "" {
		c.Tone = ToneWarm
	}
	c.Tone = Tone(strings.ToLower(string(c.Tone)))
	if !c.Tone.valid() {
		return fmt.Errorf("%w: unknown tone %q", ErrInvalidConfig, c.Tone)
	}
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = defaultTimezone
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	c.loc = loc

	if len(c.Booking.BusinessHours) == 0 {
		c.Booking.BusinessHours = []string{"mon-fri 08:00-18:00"}
	}
	windows := make([]Window, 0, len(c.Booking.BusinessHours))
	for _, raw := range c.Booking.BusinessHours {
		w, err := ParseWindow(raw)
		if err != nil {
			return err
		}
		windows = append(windows, w)
	}
	c.windows = windows

	if c.Booking.MinNoticeMinutes == nil {
		minNotice := defaultMinNotice
		c.Booking.MinNoticeMinutes = &minNotice
	}
	if *c.Booking.MinNoticeMinutes < 0 {
		return fmt.Errorf("%w: min_notice_minutes must be >= 0", ErrInvalidConfig)
	}
	if c.Booking.AutoConfirm == nil {
		autoConfirm := true
		c.Booking.AutoConfirm = &autoConfirm
	}
	if c.Booking.SlotMinutes == 0 {
		c.Booking.SlotMinutes = defaultSlot
	}
	if c.Booking.SlotMinutes < 5 || c.Booking.SlotMinutes > 60 || 60%c.Booking.SlotMinutes != 0 {
		return fmt.Errorf("%w: slot_minutes %d must divide an hour", ErrInvalidConfig, c.Booking.SlotMinutes)
	}

	aliases := make(map[string]string, len(c.ProviderAliases))
	for k, v := range c.ProviderAliases {
		key := normalizeName(k)
		if key == "" || strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: empty provider alias %q -> %q", ErrInvalidConfig, k, v)
		}
		aliases[key] = strings.TrimSpace(v)
	}
	c.ProviderAliases = aliases

	var disclaimers []string
	for _, d := range c.Disclaimers {
		if d = strings.TrimSpace(d); d != "" {
			disclaimers = append(disclaimers, d)
		}
	}
	if len(disclaimers) == 0 {
		disclaimers = []string{defaultDisclaimer}
	}
	c.Disclaimers = disclaimers
	return nil
}

// Location returns the clinic's time zone.
func (c *Config) Location() *time.Location {
	if c == nil || c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Windows returns the parsed business-hour windows in configured order.
func (c *Config) Windows() []Window {
	return c.windows
}

// MinNotice returns the minimum lead time for a booking.
func (c *Config) MinNotice() time.Duration {
	if c.Booking.MinNoticeMinutes == nil {
		return defaultMinNotice * time.Minute
	}
	return time.Duration(*c.Booking.MinNoticeMinutes) * time.Minute
}

// Slot returns the slot length and grid step.
func (c *Config) Slot() time.Duration {
	return time.Duration(c.Booking.SlotMinutes) * time.Minute
}

// AutoConfirm reports whether bookings may be created without an explicit
// patient confirmation.
func (c *Config) AutoConfirm() bool {
	return c.Booking.AutoConfirm == nil || *c.Booking.AutoConfirm
}

// FirstDisclaimer returns the leading mandatory disclaimer phrase.
func (c *Config) FirstDisclaimer() string {
	if len(c.Disclaimers) == 0 {
		return ""
	}
	return c.Disclaimers[0]
}

// ResolveProvider maps a free-text provider name onto its canonical name. Unknown
// names come back trimmed but otherwise unchanged.
func (c *Config) ResolveProvider(name string) string {
	trimmed := strings.TrimSpace(name)
	if c == nil || len(c.ProviderAliases) == 0 {
		return trimmed
	}
	key := normalizeName(name)
	if canonical, ok := c.ProviderAliases[key]; ok {
		return canonical
	}
	for _, canonical := range c.ProviderAliases {
		if normalizeName(canonical) == key {
			return canonical
		}
	}
	return trimmed
}

// Providers lists the distinct canonical provider names, sorted.
func (c *Config) Providers() []string {
	seen := make(map[string]struct{}, len(c.ProviderAliases))
	var out []string
	for _, canonical := range c.ProviderAliases {
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	sort.Strings(out)
	return out
}

// TopicAnswer returns the canned answer for a fixed FAQ topic.
func (c *Config) TopicAnswer(topic FAQTopic) (string, bool) {
	switch topic {
	case TopicAddress:
		return c.FAQ.Address, true
	case TopicPrice:
		return c.FAQ.Price, true
	case TopicPlans:
		return c.FAQ.Plans, true
	}
	return "", false
}

// MatchQuestion finds the free-form FAQ entry sharing the most words with question.
func (c *Config) MatchQuestion(question string) (FAQEntry, bool) {
	words := wordSet(question)
	if len(words) == 0 {
		return FAQEntry{}, false
	}
	var (
		best      FAQEntry
		bestScore int
	)
	for _, entry := range c.FAQ.Entries {
		score := 0
		for w := range wordSet(entry.Question) {
			if _, ok := words[w]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = entry, score
		}
	}
	return best, bestScore > 0
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "do": {}, "you": {}, "i": {}, "to": {},
	"of": {}, "for": {}, "what": {}, "how": {}, "can": {}, "my": {}, "your": {}, "are": {},
}

func wordSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if _, stop := stopWords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.Join(strings.Fields(name), " ")
	return strings.TrimSuffix(name, ".")
}

// Int returns a pointer to v, for optional numeric policy fields.
func Int(v int) *int { return &v }

// Bool returns a pointer to v, for optional boolean policy fields.
func Bool(v bool) *bool { return &v }
