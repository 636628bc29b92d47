package model

import (
	"strings"

	tferrors "github.com/YuminosukeSato/tabflow/pkg/errors"
)

// EstimatorState はモデルの学習状態を表す
type EstimatorState int

const (
	// NotFitted はモデルが未学習の状態
	NotFitted EstimatorState = iota
	// Fitted はモデルが学習済みの状態
	Fitted
)

// BaseEstimator は全てのモデルの基底となる構造体
// State はgobで永続化するため公開フィールドにしている
type BaseEstimator struct {
	State EstimatorState
}

// IsFitted はモデルが学習済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

// SetFitted はモデルを学習済み状態に設定する
func (e *BaseEstimator) SetFitted() {
	e.State = Fitted
}

// Reset はモデルを初期状態にリセットする
func (e *BaseEstimator) Reset() {
	e.State = NotFitted
}

// Task は学習タスクの種類（分類または回帰）
type Task int

const (
	// Regression は連続値を予測するタスク
	Regression Task = iota
	// Classification はクラスコードを予測するタスク
	Classification
)

func (t Task) String() string {
	switch t {
	case Classification:
		return "classification"
	case Regression:
		return "regression"
	default:
		return "unknown"
	}
}

// ParseTask は文字列からTaskを得る。認識できない場合はfalseを返す
func ParseTask(s string) (Task, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "classification":
		return Classification, true
	case "regression":
		return Regression, true
	default:
		return Regression, false
	}
}

// MarshalText はJSON/YAMLでタスク名を文字列として出力する
func (t Task) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText はタスク名の文字列を読み込む
func (t *Task) UnmarshalText(text []byte) error {
	parsed, ok := ParseTask(string(text))
	if !ok {
		return tferrors.NewValidationError("task", "must be classification or regression", string(text))
	}
	*t = parsed
	return nil
}
