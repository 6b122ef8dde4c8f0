package submitter

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/username/kncbank/web/src/model"
	"github.com/username/kncbank/web/src/models"
	"github.com/username/kncbank/web/src/recipient"
)

// Workspace is the form state of one browser session: one form per kind
// plus the send-money recipient validator.
type Workspace struct {
	SessionID string
	Identity  models.Identity
	Recipient *recipient.Validator

	forms map[models.TransactionKind]*Form
}

// Form returns the workspace's form for kind, or nil for a kind that cannot
// be submitted.
func (w *Workspace) Form(kind models.TransactionKind) *Form {
	return w.forms[kind]
}

// Registry keeps workspaces keyed by session ID. Idle workspaces expire.
type Registry struct {
	submitter *Submitter
	lookup    recipient.Lookup
	debounce  time.Duration

	mu    sync.Mutex
	store *cache.Cache
}

func NewRegistry(s *Submitter, lookup recipient.Lookup, idle, debounce time.Duration) *Registry {
	return &Registry{
		submitter: s,
		lookup:    lookup,
		debounce:  debounce,
		store:     cache.New(idle, idle),
	}
}

// Get returns the workspace for sessionID, creating it on first use. A
// session whose identity changed gets a fresh workspace.
func (r *Registry) Get(sessionID string, id models.Identity) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.store.Get(sessionID); ok {
		if ws := v.(*Workspace); ws.Identity == id {
			r.store.SetDefault(sessionID, ws)
			return ws
		}
	}
	ws := r.newWorkspace(sessionID, id)
	r.store.SetDefault(sessionID, ws)
	return ws
}

func (r *Registry) newWorkspace(sessionID string, id models.Identity) *Workspace {
	ws := &Workspace{
		SessionID: sessionID,
		Identity:  id,
		Recipient: recipient.New(id, r.lookup, recipient.WithDebounce(r.debounce)),
		forms:     make(map[models.TransactionKind]*Form, len(models.SubmittableKinds)),
	}
	for _, kind := range models.SubmittableKinds {
		var check RecipientCheck
		if kind == models.KindSendMoney {
			check = ws.Recipient
		}
		form, err := r.submitter.NewForm(kind, id, check)
		if err != nil {
			// Every submittable kind has a form definition.
			panic(err)
		}
		ws.forms[kind] = form
	}
	return ws
}

// Drop forgets a session's workspace, e.g. on logout.
func (r *Registry) Drop(sessionID string) {
	r.store.Delete(sessionID)
}

// Len is the number of live workspaces.
func (r *Registry) Len() int { return r.store.ItemCount() }

// SQLJournal appends submissions to the local sqlite journal.
type SQLJournal struct {
	DB *sql.DB
}

func (j SQLJournal) Record(_ context.Context, e *model.SubmissionEntry) error {
	return model.InsertSubmission(j.DB, e)
}
