package gateway

import (
	"errors"

	"github.com/nao1215/chatmesh/pkg/httpclient"
)

// サービス名。URLの先頭セグメントに対応する。
const (
	serviceAuth    = "auth"
	serviceMessage = "messages"
)

var (
	// errServiceNotFound はルーティングテーブルに無いサービスであることを表す。
	errServiceNotFound = errors.New("service not found")
	// errPathNotFound はサービスの許可リストに無いパスであることを表す。
	errPathNotFound = errors.New("service doesn't exist")
)

// route は転送先1件分の設定。
type route struct {
	// client は転送先サービスへの通信クライアント。
	client *httpclient.Client
	// public がtrueの場合、トークン検証を行わずに転送する。
	public bool
}

// routeTable はサービス名→パス→転送先の許可リスト。起動時に構築し、以降は読み取り専用。
type routeTable map[string]map[string]route

// newRouteTable は各サービスのクライアントからルーティングテーブルを構築する。
func newRouteTable(authClient, messageClient *httpclient.Client) routeTable {
	authRoute := route{client: authClient, public: true}
	messageRoute := route{client: messageClient}

	return routeTable{
		serviceAuth: {
			"register": authRoute,
			"login":    authRoute,
			"users":    authRoute,
		},
		serviceMessage: {
			"send":  messageRoute,
			"fetch": messageRoute,
		},
	}
}

// resolve はサービス名とパスから転送先を引く。
func (t routeTable) resolve(service, path string) (route, error) {
	paths, ok := t[service]
	if !ok {
		return route{}, errServiceNotFound
	}
	r, ok := paths[path]
	if !ok {
		return route{}, errPathNotFound
	}
	return r, nil
}
