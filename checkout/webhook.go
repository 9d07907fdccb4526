package checkout

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook verification errors. Signature failures must reject the
// event before any state is touched: membership writes are trusted
// only when provably from the payment provider.
var (
	ErrBadSignature = errors.New("webhook signature verification failed")
	ErrStaleEvent   = errors.New("webhook event outside tolerance window")
	ErrMissingUser  = errors.New("webhook event missing user reference")
	ErrUnknownPlan  = errors.New("webhook event names an unknown plan")
	ErrIgnoredEvent = errors.New("webhook event type not handled")
)

// DefaultTolerance bounds how old a signed event may be.
const DefaultTolerance = 5 * time.Minute

// Event is the subset of the provider's checkout event we consume.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ClientReferenceID string            `json:"client_reference_id"`
			Metadata          map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// VerifySignature checks a `t=<unix>,v1=<hex>` signature header over
// `<t>.<payload>` with HMAC-SHA256, within tolerance of now.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	var ts int64
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrBadSignature
			}
			ts = n
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return ErrBadSignature
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > tolerance || age < -tolerance {
		return ErrStaleEvent
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	want := hex.EncodeToString(mac.Sum(nil))
	for _, got := range sigs {
		if hmac.Equal([]byte(got), []byte(want)) {
			return nil
		}
	}
	return ErrBadSignature
}

// ParseEvent decodes and validates a completed-checkout event into the
// grant arguments. Events of other types return ErrIgnoredEvent.
func ParseEvent(payload []byte) (GrantArgs, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return GrantArgs{}, fmt.Errorf("decode webhook event: %w", err)
	}
	if ev.Type != "checkout.session.completed" {
		return GrantArgs{}, ErrIgnoredEvent
	}
	if ev.Data.Object.ClientReferenceID == "" {
		return GrantArgs{}, ErrMissingUser
	}
	planID := ev.Data.Object.Metadata["plan"]
	if planID == "" {
		return GrantArgs{}, ErrUnknownPlan
	}
	return GrantArgs{
		EventID: ev.ID,
		UserID:  ev.Data.Object.ClientReferenceID,
		PlanID:  planID,
	}, nil
}
