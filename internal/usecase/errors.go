package usecase

import (
	"errors"
	"fmt"
)

var (
	//400 入力不正（数量が0以下、存在しない商品など）。副作用なし
	ErrInvalidArgument = errors.New("invalid argument")
	//在庫不足。カートも在庫も変わらない
	ErrInsufficientStock = errors.New("insufficient stock")
	//カートに無い明細を操作した
	ErrNotFound = errors.New("not found")
	//空カートのチェックアウト、未ログインのチェックアウトなど
	ErrInvalidState = errors.New("invalid state")
)

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func notFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func invalidState(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// IsBusinessError は呼び出し側で回復できるエラーかどうか
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidState)
}
