package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return t.commitErr
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeBeginner struct {
	tx       *fakeTx
	level    pgx.TxIsoLevel
	beginErr error
}

func (b *fakeBeginner) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	if b.beginErr != nil {
		return nil, b.beginErr
	}
	b.level = opts.IsoLevel
	return b.tx, nil
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	err := WithTx(context.Background(), b, func(pgx.Tx) error { return nil })
	require.NoError(t, err)
	require.True(t, b.tx.committed)
	require.False(t, b.tx.rolledBack)
	require.Equal(t, pgx.RepeatableRead, b.level)
}

func TestWithTxIsolationRollsBackOnError(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	boom := errors.New("boom")
	err := WithTxIsolation(context.Background(), b, pgx.ReadCommitted, func(pgx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, b.tx.committed)
	require.True(t, b.tx.rolledBack)
	require.Equal(t, pgx.ReadCommitted, b.level)
}

func TestWithTxWrapsBeginAndCommitErrors(t *testing.T) {
	beginErr := errors.New("no conn")
	err := WithTx(context.Background(), &fakeBeginner{beginErr: beginErr}, func(pgx.Tx) error { return nil })
	require.ErrorIs(t, err, beginErr)

	commitErr := errors.New("serialization")
	err = WithTx(context.Background(), &fakeBeginner{tx: &fakeTx{commitErr: commitErr}}, func(pgx.Tx) error { return nil })
	require.ErrorIs(t, err, commitErr)
}

func TestPgErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	check := &pgconn.PgError{Code: "23514"}
	require.True(t, IsUniqueViolation(unique))
	require.False(t, IsUniqueViolation(check))
	require.True(t, IsCheckViolation(check))
	require.False(t, IsCheckViolation(errors.New("plain")))

	deadlock := fmt.Errorf("decrement: %w", &pgconn.PgError{Code: "40P01"})
	require.True(t, IsDeadlock(deadlock))
	require.False(t, IsDeadlock(check))
}
