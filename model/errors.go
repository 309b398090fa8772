package model

import "errors"

// ErrorKind はリバートの分類
type ErrorKind string

const (
	KindPrecondition ErrorKind = "PreconditionViolation"
	KindUnauthorized ErrorKind = "AuthorizationFailure"
	KindExternalCall ErrorKind = "ExternalCallFailure"
	KindReentrancy   ErrorKind = "ReentrancyViolation"
)

// RevertError はトランザクション全体を中断させるエラー
// Reason は呼び出し元に返すラベル付きの失敗理由
type RevertError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *RevertError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *RevertError) Unwrap() error {
	return e.Err
}

func Precondition(reason string) error {
	return &RevertError{Kind: KindPrecondition, Reason: reason}
}

func Unauthorized(reason string) error {
	return &RevertError{Kind: KindUnauthorized, Reason: reason}
}

// ExternalCall はコラボレータ呼び出しの失敗をラップする
func ExternalCall(reason string, err error) error {
	return &RevertError{Kind: KindExternalCall, Reason: reason, Err: err}
}

var ErrReentrantCall = &RevertError{Kind: KindReentrancy, Reason: "ReentrancyGuard: reentrant call"}

// IsKind はラップチェーンのどこかに指定種別の RevertError があるかを返す
func IsKind(err error, kind ErrorKind) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if r, ok := e.(*RevertError); ok && r.Kind == kind {
			return true
		}
	}
	return false
}

// KindOf は最も外側の RevertError の種別を返す
func KindOf(err error) (ErrorKind, bool) {
	var r *RevertError
	if errors.As(err, &r) {
		return r.Kind, true
	}
	return "", false
}

// Reason は最も内側の RevertError の理由を返す
func Reason(err error) string {
	reason := ""
	for e := err; e != nil; e = errors.Unwrap(e) {
		if r, ok := e.(*RevertError); ok {
			reason = r.Reason
		}
	}
	if reason == "" && err != nil {
		return err.Error()
	}
	return reason
}
