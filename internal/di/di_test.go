package di

import "testing"

type greeter struct{ name string }

func TestContainer_FactoryIsLazyAndSingleton(t *testing.T) {
	c := NewContainer()
	tok := NewToken[*greeter]("greeter")

	calls := 0
	RegisterToken(c, tok, func(ServiceRegistry) *greeter {
		calls++
		return &greeter{name: "wallet"}
	})

	if calls != 0 {
		t.Fatalf("factory ran before first Get")
	}

	a := GetToken(c, tok)
	b := GetToken(c, tok)

	if a != b {
		t.Error("expected the same instance on every Get")
	}
	if calls != 1 {
		t.Errorf("expected factory to run once, ran %d times", calls)
	}
}

func TestContainer_FactoryResolvesDependencies(t *testing.T) {
	c := NewContainer()
	c.Register("name", "sepolia")

	tok := NewToken[*greeter]("greeter")
	RegisterToken(c, tok, func(sr ServiceRegistry) *greeter {
		return &greeter{name: sr.Get("name").(string)}
	})

	if got := GetToken(c, tok).name; got != "sepolia" {
		t.Errorf("expected sepolia, got %s", got)
	}
}

func TestContainer_UnknownServicePanics(t *testing.T) {
	c := NewContainer()

	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown service")
		}
	}()
	c.Get("missing")
}

func TestContainer_Has(t *testing.T) {
	c := NewContainer()
	c.Register("config", struct{}{})

	if !c.Has("config") {
		t.Error("expected config to be registered")
	}
	if c.Has("redis") {
		t.Error("did not expect redis to be registered")
	}
}
