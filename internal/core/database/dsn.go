package database

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// JDBC/Navicat 参数名 → go-sql-driver 参数名
var jdbcParams = map[string]string{
	"characterEncoding": "charset",
	"serverTimezone":    "loc",
}

// go-sql-driver 不认识的 JDBC 参数
var jdbcDropped = []string{"useUnicode", "zeroDateTimeBehavior"}

// normalizeMySQLDSN 接受 go-sql-driver 原生 DSN 或 mysql:// / jdbc:mysql:// URL，统一成
// user:pass@tcp(host:port)/db?...；显式传入的账号密码优先
func normalizeMySQLDSN(input, user, pass string) string {
	in := strings.TrimPrefix(strings.TrimSpace(input), "jdbc:")
	if !strings.HasPrefix(in, "mysql://") {
		return in
	}
	u, err := url.Parse(in)
	if err != nil {
		return in
	}
	q := u.Query()

	urlUser, urlPass := q.Get("user"), q.Get("password")
	q.Del("user")
	q.Del("password")
	if u.User != nil {
		urlUser = u.User.Username()
		urlPass, _ = u.User.Password()
	}
	if user == "" {
		user = urlUser
	}
	if pass == "" {
		pass = urlPass
	}

	for from, to := range jdbcParams {
		if v := q.Get(from); v != "" && q.Get(to) == "" {
			q.Set(to, v)
		}
		q.Del(from)
	}
	for _, k := range jdbcDropped {
		q.Del(k)
	}
	if v := strings.ToLower(q.Get("useSSL")); v != "" {
		q.Del("useSSL")
		switch v {
		case "true", "1":
			v = "true"
		case "skip-verify", "preferred":
		default:
			v = "false"
		}
		q.Set("tls", v)
	}
	if q.Get("parseTime") == "" {
		q.Set("parseTime", "true")
	}
	if q.Get("charset") == "" {
		q.Set("charset", "utf8mb4")
	}

	cred := user
	if pass != "" {
		cred += ":" + pass
	}
	if cred != "" {
		cred += "@"
	}
	dsn := fmt.Sprintf("%stcp(%s)/%s", cred, u.Host, strings.TrimPrefix(u.Path, "/"))
	if enc := q.Encode(); enc != "" {
		dsn += "?" + enc
	}
	return dsn
}

var dsnPassword = regexp.MustCompile(`^([^:@/]+):[^@]*@`)

// maskDSN 日志里隐藏密码
func maskDSN(dsn string) string { return dsnPassword.ReplaceAllString(dsn, "$1:****@") }
