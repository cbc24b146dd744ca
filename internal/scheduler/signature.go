package scheduler

import (
	"os"
	"strings"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/utils"
)

// TimeoutSignature is what LSF writes to a job's output when it is killed
// at its walltime.
const TimeoutSignature = "Exited with exit code 140."

// Signature maps a text pattern found in job output to the state it implies.
type Signature struct {
	Pattern string
	State   JobState
}

// Signatures is checked in order; the first match wins.
var Signatures = []Signature{
	{Pattern: "Segmentation fault", State: StateFailed},
	{Pattern: "Aborted", State: StateFailed},
	{Pattern: TimeoutSignature, State: StateTimedOut},
}

// MatchSignature returns the first signature contained in text.
func MatchSignature(text string) (Signature, bool) {
	for _, sig := range Signatures {
		if strings.Contains(text, sig.Pattern) {
			return sig, true
		}
	}
	return Signature{}, false
}

// ScanFile matches the signature table against a file's content.
// A missing file matches nothing.
func ScanFile(path string) (Signature, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Signature{}, false, nil
		}
		return Signature{}, false, err
	}
	sig, ok := MatchSignature(string(data))
	return sig, ok, nil
}

// HasTimeoutSignature reports whether the file contains TimeoutSignature.
func HasTimeoutSignature(path string) bool {
	return utils.FileContains(path, TimeoutSignature)
}
