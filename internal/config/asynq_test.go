package config

import "testing"

func TestAsynqRedisOptPlainAddress(t *testing.T) {
	opt := AsynqRedisOpt(&Config{
		RedisURL:      "localhost:6379",
		RedisPassword: "secret",
		RedisDB:       2,
	})
	if opt.Addr != "localhost:6379" {
		t.Errorf("Addr = %q, want localhost:6379", opt.Addr)
	}
	if opt.Password != "secret" || opt.DB != 2 {
		t.Errorf("Password/DB not carried: %q/%d", opt.Password, opt.DB)
	}
}

// Addresses shorter than or equal to the scheme prefix length must be
// treated as plain host:port, not sliced as URLs.
func TestAsynqRedisOptShortAddress(t *testing.T) {
	for _, addr := range []string{"rd:16379", "r:6379", "", "redis:/"} {
		opt := AsynqRedisOpt(&Config{RedisURL: addr})
		if opt.Addr != addr {
			t.Errorf("AsynqRedisOpt(%q).Addr = %q, want passthrough", addr, opt.Addr)
		}
	}
}

func TestAsynqRedisOptParsesURL(t *testing.T) {
	opt := AsynqRedisOpt(&Config{RedisURL: "redis://:hunter2@cache.internal:6380/3"})
	if opt.Addr != "cache.internal:6380" {
		t.Errorf("Addr = %q, want cache.internal:6380", opt.Addr)
	}
	if opt.Password != "hunter2" {
		t.Errorf("Password = %q, want hunter2", opt.Password)
	}
	if opt.DB != 3 {
		t.Errorf("DB = %d, want 3", opt.DB)
	}
}
