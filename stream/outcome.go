package stream

// Outcome classifies the error half of an operation result.
type Outcome uint8

const (
	OutcomeFailure Outcome = iota
	OutcomeOK
	OutcomeWouldBlockRead
	OutcomeWouldBlockWrite
	OutcomeInterrupted
	OutcomeEndOfData
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "OK"
	case OutcomeWouldBlockRead:
		return "WouldBlockRead"
	case OutcomeWouldBlockWrite:
		return "WouldBlockWrite"
	case OutcomeInterrupted:
		return "Interrupted"
	case OutcomeEndOfData:
		return "EndOfData"
	default:
		return "Failure"
	}
}

// Classify maps err to an Outcome so retry loops can switch on it. A
// would-block error that asks for writability is OutcomeWouldBlockWrite,
// any other would-block error is OutcomeWouldBlockRead.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case IsWouldBlock(err):
		if ev := WaitEvents(err); ev.Has(EventWritable) && !ev.Has(EventReadable) {
			return OutcomeWouldBlockWrite
		}
		return OutcomeWouldBlockRead
	case IsInterrupted(err):
		return OutcomeInterrupted
	case IsEndOfData(err):
		return OutcomeEndOfData
	default:
		return OutcomeFailure
	}
}
