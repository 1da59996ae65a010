package ids

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// Operation prefixes used for references and transaction ids.
const (
	PrefixTransaction = "TXN"
	PrefixReference   = "REF"
	PrefixPayment     = "PAY"
	PrefixTransfer    = "TRF"
	PrefixExternal    = "EXT"
	PrefixInterbank   = "INT"
	PrefixLoanPayment = "LPY"
	PrefixLoan        = "LON"
	PrefixSavings     = "SAV"
	PrefixInvestment  = "INV"

	// Suffixes appended to an operation reference for its paired ledger rows.
	SuffixSender   = "S"
	SuffixReceiver = "R"
)

// AccountNumberLength is the number of digits in a generated account number.
const AccountNumberLength = 10

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Reference returns prefix + unix millis + a zero-padded 4 digit random suffix.
// Uniqueness is not guaranteed here; stores reject duplicates.
func Reference(prefix string) string {
	return ReferenceAt(prefix, time.Now())
}

// ReferenceAt is Reference with an explicit clock reading.
func ReferenceAt(prefix string, now time.Time) string {
	return fmt.Sprintf("%s%d%04d", prefix, now.UnixMilli(), randomInt(10000))
}

// AccountNumber returns AccountNumberLength random digits. The first digit is never zero.
func AccountNumber() string {
	b := make([]byte, AccountNumberLength)
	b[0] = byte('1' + randomInt(9))
	for i := 1; i < len(b); i++ {
		b[i] = byte('0' + randomInt(10))
	}
	return string(b)
}

func randomInt(n int64) int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		entropyMu.Lock()
		defer entropyMu.Unlock()
		return mathrand.Int63n(n)
	}
	return v.Int64()
}
