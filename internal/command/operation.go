package command

import "strings"

// Operation is the action requested of a station.
type Operation int

const (
	Help Operation = iota
	Shutdown
	PowerOn
	PowerOff
	PttEnable
	PttDisable
)

// verbs is the complete grammar; there is no fallthrough matching.
var verbs = map[string]Operation{
	"help":        Help,
	"shutdown":    Shutdown,
	"power on":    PowerOn,
	"power off":   PowerOff,
	"ptt enable":  PttEnable,
	"ptt disable": PttDisable,
}

// Verbs lists the command verbs in display order.
var Verbs = []string{"help", "shutdown", "power on", "power off", "ptt enable", "ptt disable"}

func lookupOperation(tokens []string) (Operation, bool) {
	if len(tokens) == 0 {
		return 0, false
	}
	op, ok := verbs[strings.Join(tokens, " ")]
	return op, ok
}

// IsOperatorOnly reports whether only station operators may issue the operation.
func (o Operation) IsOperatorOnly() bool {
	return o != Help
}

func (o Operation) String() string {
	switch o {
	case Help:
		return "help"
	case Shutdown:
		return "shutdown"
	case PowerOn:
		return "power_on"
	case PowerOff:
		return "power_off"
	case PttEnable:
		return "ptt_enable"
	case PttDisable:
		return "ptt_disable"
	default:
		return "unknown"
	}
}
