package service

import "errors"

// Kind: категория ошибки синхронизации.
type Kind int

const (
	// KindUnknown: непредвиденная ошибка (например, локальной БД).
	KindUnknown Kind = iota
	// KindPendingOffline: изменение сохранено локально, отправка на сервер отложена.
	KindPendingOffline
	// KindNotFound: записи с таким ключом нет.
	KindNotFound
	// KindRemoteRejected: сервер окончательно отклонил изменение; локально оно не применено.
	KindRemoteRejected
)

func (k Kind) String() string {
	switch k {
	case KindPendingOffline:
		return "pending offline"
	case KindNotFound:
		return "not found"
	case KindRemoteRejected:
		return "remote rejected"
	default:
		return "unknown"
	}
}

// SyncError: результат мутирующей операции движка, на который может ветвиться вызывающий.
type SyncError struct {
	Kind Kind
	Key  string
	Msg  string
	Err  error
}

func (e *SyncError) Error() string {
	s := e.Kind.String()
	if e.Key != "" {
		s += " [" + e.Key + "]"
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *SyncError) Unwrap() error { return e.Err }

// Is сравнивает ошибки по Kind, чтобы работало errors.Is(err, ErrPendingOffline).
func (e *SyncError) Is(target error) bool {
	var t *SyncError
	if !errors.As(target, &t) {
		return false
	}
	return t.Key == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Эталоны для errors.Is.
var (
	ErrUnknown        = &SyncError{Kind: KindUnknown}
	ErrPendingOffline = &SyncError{Kind: KindPendingOffline}
	ErrNotFound       = &SyncError{Kind: KindNotFound}
	ErrRemoteRejected = &SyncError{Kind: KindRemoteRejected}
)

// PendingMessage: подсказка пользователю, когда сервер недоступен.
const PendingMessage = "saved locally, will be synced later"

// IsAdvisory сообщает, что ошибка не фатальна: изменение уже сохранено локально.
func IsAdvisory(err error) bool { return errors.Is(err, ErrPendingOffline) }

// KindOf возвращает Kind ошибки; для nil: false.
func KindOf(err error) (Kind, bool) {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	if err != nil {
		return KindUnknown, true
	}
	return KindUnknown, false
}

func pendingOffline(key string, cause error) error {
	return &SyncError{Kind: KindPendingOffline, Key: key, Msg: PendingMessage, Err: cause}
}

func notFound(key string) error {
	return &SyncError{Kind: KindNotFound, Key: key, Msg: "no such record"}
}

func rejected(key string, cause error) error {
	return &SyncError{Kind: KindRemoteRejected, Key: key, Err: cause}
}

func unknown(key, op string, cause error) error {
	return &SyncError{Kind: KindUnknown, Key: key, Msg: op, Err: cause}
}
