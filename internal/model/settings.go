package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownSetting indicates a key that AppSettings does not have.
	ErrUnknownSetting = errors.New("unknown setting")
	// ErrSettingType indicates a value of the wrong type for a key.
	ErrSettingType = errors.New("wrong setting value type")
	// ErrSettingRange indicates a numeric value outside its allowed range.
	ErrSettingRange = errors.New("setting value out of range")
)

// SettingKey names one AppSettings field. Values match the JSON field names.
type SettingKey string

const (
	SettingEnableCategories  SettingKey = "enableCategories"
	SettingDoneToBottom      SettingKey = "doneToBottom"
	SettingEnableGlow        SettingKey = "enableGlow"
	SettingSimpleEmojiPicker SettingKey = "simpleEmojiPicker"
	SettingEnableReadAloud   SettingKey = "enableReadAloud"
	SettingAppBadge          SettingKey = "appBadge"
	SettingVoice             SettingKey = "voice"
	SettingVoiceVolume       SettingKey = "voiceVolume"
)

// ToggleKeys lists the boolean settings in display order.
var ToggleKeys = []SettingKey{
	SettingEnableCategories,
	SettingDoneToBottom,
	SettingEnableGlow,
	SettingSimpleEmojiPicker,
	SettingEnableReadAloud,
	SettingAppBadge,
}

// AppSettings holds the user's UI preferences.
type AppSettings struct {
	EnableCategories  bool    `json:"enableCategories"`
	DoneToBottom      bool    `json:"doneToBottom"`
	EnableGlow        bool    `json:"enableGlow"`
	SimpleEmojiPicker bool    `json:"simpleEmojiPicker"`
	EnableReadAloud   bool    `json:"enableReadAloud"`
	AppBadge          bool    `json:"appBadge"`
	Voice             string  `json:"voice"`
	VoiceVolume       float64 `json:"voiceVolume"`
}

// DefaultSettings returns the documented default for every field.
func DefaultSettings() AppSettings {
	return AppSettings{
		EnableCategories:  true,
		DoneToBottom:      false,
		EnableGlow:        true,
		SimpleEmojiPicker: false,
		EnableReadAloud:   true,
		AppBadge:          false,
		Voice:             "Google US English::en-US",
		VoiceVolume:       0.6,
	}
}

// UnmarshalJSON seeds the defaults so that absent fields keep them.
func (s *AppSettings) UnmarshalJSON(data []byte) error {
	type plain AppSettings
	decoded := plain(DefaultSettings())
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*s = AppSettings(decoded)
	return nil
}

// Label returns a human readable name for a setting key.
func (k SettingKey) Label() string {
	switch k {
	case SettingEnableCategories:
		return "Enable Categories"
	case SettingDoneToBottom:
		return "Move Done Tasks To Bottom"
	case SettingEnableGlow:
		return "Enable Glow Effect"
	case SettingSimpleEmojiPicker:
		return "Simple Emoji Picker"
	case SettingEnableReadAloud:
		return "Enable Read Aloud"
	case SettingAppBadge:
		return "Enable App Badge"
	case SettingVoice:
		return "Voice"
	case SettingVoiceVolume:
		return "Voice Volume"
	default:
		return string(k)
	}
}

// Get returns the current value of key.
func (s AppSettings) Get(key SettingKey) (any, error) {
	if p := s.boolField(key); p != nil {
		return *p, nil
	}
	switch key {
	case SettingVoice:
		return s.Voice, nil
	case SettingVoiceVolume:
		return s.VoiceVolume, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSetting, key)
}

// Bool returns the value of a boolean key, false for anything else.
func (s AppSettings) Bool(key SettingKey) bool {
	if p := s.boolField(key); p != nil {
		return *p
	}
	return false
}

// With returns a copy of s with key replaced by value.
func (s AppSettings) With(key SettingKey, value any) (AppSettings, error) {
	if p := s.boolField(key); p != nil {
		v, ok := value.(bool)
		if !ok {
			return s, fmt.Errorf("%w: %s expects bool, got %T", ErrSettingType, key, value)
		}
		*p = v
		return s, nil
	}

	switch key {
	case SettingVoice:
		v, ok := value.(string)
		if !ok {
			return s, fmt.Errorf("%w: %s expects string, got %T", ErrSettingType, key, value)
		}
		s.Voice = v
		return s, nil
	case SettingVoiceVolume:
		var v float64
		switch n := value.(type) {
		case float64:
			v = n
		case float32:
			v = float64(n)
		case int:
			v = float64(n)
		default:
			return s, fmt.Errorf("%w: %s expects number, got %T", ErrSettingType, key, value)
		}
		if v < 0 || v > 1 {
			return s, fmt.Errorf("%w: %s must be between 0 and 1, got %v", ErrSettingRange, key, v)
		}
		s.VoiceVolume = v
		return s, nil
	}

	return s, fmt.Errorf("%w: %q", ErrUnknownSetting, key)
}

// boolField points into the receiver copy; callers get a pointer into their own value.
func (s *AppSettings) boolField(key SettingKey) *bool {
	switch key {
	case SettingEnableCategories:
		return &s.EnableCategories
	case SettingDoneToBottom:
		return &s.DoneToBottom
	case SettingEnableGlow:
		return &s.EnableGlow
	case SettingSimpleEmojiPicker:
		return &s.SimpleEmojiPicker
	case SettingEnableReadAloud:
		return &s.EnableReadAloud
	case SettingAppBadge:
		return &s.AppBadge
	default:
		return nil
	}
}
