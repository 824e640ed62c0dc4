package session

import "context"

// Observer times a logical store operation.
type Observer interface {
	ObserveStore(op string, fn func() error) error
}

type instrumented struct {
	next Persister
	obs  Observer
}

// Instrument wraps p so every call is reported to obs. ErrNotFound is not counted as a failure.
func Instrument(p Persister, obs Observer) Persister {
	if obs == nil {
		return p
	}
	return &instrumented{next: p, obs: obs}
}

func (i *instrumented) Load(ctx context.Context, key string) (Session, error) {
	var out Session
	var notFound error
	err := i.obs.ObserveStore("session_load", func() error {
		s, err := i.next.Load(ctx, key)
		if err == ErrNotFound {
			notFound = err
			return nil
		}
		out = s
		return err
	})
	if notFound != nil {
		return Session{}, notFound
	}
	return out, err
}

func (i *instrumented) Save(ctx context.Context, key string, s Session) error {
	return i.obs.ObserveStore("session_save", func() error {
		return i.next.Save(ctx, key, s)
	})
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	return i.obs.ObserveStore("session_delete", func() error {
		return i.next.Delete(ctx, key)
	})
}

func (i *instrumented) Ping(ctx context.Context) error {
	if p, ok := i.next.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
