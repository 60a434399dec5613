package database

import (
	"context"
	"database/sql/driver"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrorClass 数据库错误分类，决定事务是否重试
type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassLockTimeout
)

// MySQL 错误码
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
	mysqlErrDuplicateEntry  = 1062
	mysqlErrNoReferencedRow = 1452
	mysqlErrServerGone      = 2006
	mysqlErrServerLost      = 2013
)

// ClassifyError 对数据库错误分类
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassPermanent
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrDeadlock:
			return ErrorClassDeadlock
		case mysqlErrLockWaitTimeout:
			return ErrorClassLockTimeout
		case mysqlErrServerGone, mysqlErrServerLost:
			return ErrorClassTransient
		}
		return ErrorClassPermanent
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return ErrorClassTransient
	}
	return ErrorClassPermanent
}

// IsRetryable 错误是否可以通过重试事务解决
func IsRetryable(err error) bool {
	return ClassifyError(err) != ErrorClassPermanent
}

// IsDuplicateKey 是否为唯一键冲突
func IsDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry
}

// IsForeignKeyViolation 是否为外键引用不存在
func IsForeignKeyViolation(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrNoReferencedRow
}
