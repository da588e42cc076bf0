package sandbox

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-threedsecure/api"
	"github.com/jrsteele09/go-threedsecure/threedsmodel"
)

// Submission names a sub-flow submission the sandbox can wait for.
type Submission string

const (
	SubmissionNone      Submission = ""
	SubmissionDSMethod  Submission = "dsmethod"
	SubmissionChallenge Submission = "challenge"
)

var ErrTransactionNotFound = errors.New("transaction not found")

// Step is one scripted event. When WaitFor is set the stream pauses after
// sending the event until that submission arrives.
//
// URL fields of the event starting with "/" are resolved against the
// sandbox origin when streamed.
type Step struct {
	Event   threedsmodel.Authentication
	WaitFor Submission
}

// Transaction is a scripted authentication.
type Transaction struct {
	ID            string
	ServerTransID string
	Steps         []Step

	mu        sync.Mutex
	browser   *api.BrowserData
	submitted map[Submission]chan struct{}
}

// NewTransaction scripts steps for id. Every event gets the transaction id
// and a generated 3DS server transaction id.
func NewTransaction(id string, steps ...Step) *Transaction {
	tx := &Transaction{
		ID:            id,
		ServerTransID: uuid.NewString(),
		submitted:     make(map[Submission]chan struct{}),
	}
	for _, step := range steps {
		step.Event.ID = id
		step.Event.TransactionID = tx.ServerTransID
		tx.Steps = append(tx.Steps, step)
	}
	return tx
}

// Browser returns the fingerprint received for the transaction, nil if none yet.
func (tx *Transaction) Browser() *api.BrowserData {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.browser
}

func (tx *Transaction) setBrowser(browser api.BrowserData) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.browser = &browser
}

// Submitted reports whether the submission arrived.
func (tx *Transaction) Submitted(submission Submission) bool {
	select {
	case <-tx.signal(submission):
		return true
	default:
		return false
	}
}

func (tx *Transaction) markSubmitted(submission Submission) {
	ch := tx.signal(submission)
	tx.mu.Lock()
	defer tx.mu.Unlock()
	select {
	case <-ch:
	default:
		close(ch)
	}
}

func (tx *Transaction) signal(submission Submission) chan struct{} {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	ch, ok := tx.submitted[submission]
	if !ok {
		ch = make(chan struct{})
		tx.submitted[submission] = ch
	}
	return ch
}

// Frictionless runs the DS Method then completes without a challenge.
func Frictionless(id string) *Transaction {
	return NewTransaction(id,
		dsMethodStep(),
		Step{Event: completed(threedsmodel.StateCompleted, "Y", "05")},
	)
}

// Challenge runs the DS Method and a challenge, then completes.
func Challenge(id string) *Transaction {
	return NewTransaction(id,
		dsMethodStep(),
		Step{
			Event: threedsmodel.Authentication{
				State:              threedsmodel.StatePendingChallenge,
				ACSURL:             RouteACS,
				ACSTransID:         uuid.NewString(),
				ACSProtocolVersion: protocolVersion,
			},
			WaitFor: SubmissionChallenge,
		},
		Step{Event: completed(threedsmodel.StateCompleted, "Y", "05")},
	)
}

// Failed runs the DS Method then rejects the authentication.
func Failed(id string) *Transaction {
	return NewTransaction(id,
		dsMethodStep(),
		Step{Event: threedsmodel.Authentication{
			State:             threedsmodel.StateFailed,
			TransStatus:       "N",
			TransStatusReason: "01",
			FailReason:        "Card authentication failed",
		}},
	)
}

// AuthorizedToAttempt ends straight away with an attempted authentication.
func AuthorizedToAttempt(id string) *Transaction {
	return NewTransaction(id, Step{Event: completed(threedsmodel.StateAuthorizedToAttempt, "A", "06")})
}

const protocolVersion = "2.2.0"

func dsMethodStep() Step {
	return Step{
		Event: threedsmodel.Authentication{
			State:               threedsmodel.StatePendingDirectoryServer,
			DSMethodURL:         RouteDSMethod,
			DSMethodCallbackURL: RouteDSMethodCallback,
		},
		WaitFor: SubmissionDSMethod,
	}
}

func completed(state threedsmodel.State, transStatus, eci string) threedsmodel.Authentication {
	return threedsmodel.Authentication{
		State:               state,
		TransStatus:         transStatus,
		AuthenticationValue: "AJkBBkhgQQAAAE4gSEJydQAAAAA=",
		ECI:                 eci,
		DSTransID:           uuid.NewString(),
		ProtocolVersion:     protocolVersion,
	}
}

// TransactionRepo is a thread-safe in-memory store of scripted transactions
type TransactionRepo struct {
	mu           sync.RWMutex
	transactions map[string]*Transaction
}

// NewTransactionRepo creates an empty repository
func NewTransactionRepo() *TransactionRepo {
	return &TransactionRepo{
		transactions: make(map[string]*Transaction),
	}
}

// Upsert stores or replaces a transaction
func (r *TransactionRepo) Upsert(tx *Transaction) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}
	if tx.ID == "" {
		return errors.New("transaction id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions[tx.ID] = tx
	return nil
}

// Get retrieves a transaction by id
func (r *TransactionRepo) Get(id string) (*Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tx, ok := r.transactions[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return tx, nil
}

// GetByServerTransID retrieves a transaction by its 3DS server transaction id
func (r *TransactionRepo) GetByServerTransID(serverTransID string) (*Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, tx := range r.transactions {
		if tx.ServerTransID == serverTransID {
			return tx, nil
		}
	}
	return nil, ErrTransactionNotFound
}

// Delete removes a transaction
func (r *TransactionRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.transactions, id)
	return nil
}
