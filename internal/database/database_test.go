package database

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestConnectDispatchesSQLite(t *testing.T) {
	db, err := Connect("sqlite://file:dispatch?mode=memory&cache=shared")
	require.NoError(t, err)
	require.Equal(t, "sqlite", db.Dialector.Name())
}

func TestConnectRejectsEmptyURLs(t *testing.T) {
	_, err := Connect("")
	require.Error(t, err)

	_, err = Connect("sqlite://")
	require.Error(t, err)

	_, err = ConnectRedis("")
	require.Error(t, err)

	_, err = ConnectNATS("", "ews")
	require.Error(t, err)
}

func TestConnectRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client, err := ConnectRedis("redis://" + server.Addr() + "/0")
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Set(context.Background(), "cohort:dashboard", "{}", 0).Err())
	require.True(t, server.Exists("cohort:dashboard"))

	_, err = ConnectRedis("redis://127.0.0.1:1/0")
	require.Error(t, err)

	_, err = ConnectRedis("::not a url")
	require.Error(t, err)
}
