package tictactoe

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChooseMovePicksLowestOpenCell(t *testing.T) {
	snap, err := json.Marshal(boardSnapshot{Board: []string{"X", "O", "", "", "", "", "", "", ""}})
	require.NoError(t, err)

	s := New()
	raw, err := s.ChooseMove(snap, "O")
	require.NoError(t, err)

	var m move
	require.NoError(t, json.Unmarshal(raw, &m))
	require.Equal(t, 2, m.Cell)
}

func TestChooseMoveIgnoresYourMark(t *testing.T) {
	snap, err := json.Marshal(boardSnapshot{Board: []string{"", "X", "O"}})
	require.NoError(t, err)

	s := New()
	rawForX, err := s.ChooseMove(snap, "X")
	require.NoError(t, err)
	rawForO, err := s.ChooseMove(snap, "O")
	require.NoError(t, err)
	require.JSONEq(t, string(rawForX), string(rawForO))
}

func TestChooseMoveErrorsWhenBoardIsFull(t *testing.T) {
	snap, err := json.Marshal(boardSnapshot{Board: []string{"X", "O", "X", "O", "X", "O", "X", "O", "X"}})
	require.NoError(t, err)

	s := New()
	_, err = s.ChooseMove(snap, "X")
	require.Error(t, err)
}

func TestChooseMoveErrorsOnMalformedSnapshot(t *testing.T) {
	s := New()
	_, err := s.ChooseMove([]byte("not json"), "X")
	require.Error(t, err)
}
