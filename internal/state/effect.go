package state

// EffectKind identifies a side effect requested by a reducer or the store.
type EffectKind int

const (
	// EffectCancelSpeech asks the executor to stop any read-aloud in progress.
	EffectCancelSpeech EffectKind = iota + 1
	// EffectNotify asks the executor to show Message to the user.
	EffectNotify
)

func (k EffectKind) String() string {
	switch k {
	case EffectCancelSpeech:
		return "cancel_speech"
	case EffectNotify:
		return "notify"
	default:
		return "unknown"
	}
}

// Effect is an I/O request executed outside the store after the state swap.
type Effect struct {
	Kind    EffectKind
	Message string
}

func notify(message string) Effect {
	return Effect{Kind: EffectNotify, Message: message}
}
