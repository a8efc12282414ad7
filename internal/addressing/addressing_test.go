package addressing

import (
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/ragent/internal/routerconfig"
	"github.com/danmuck/ragent/internal/testutil/testlog"
)

func TestMapQueue(t *testing.T) {
	testlog.Start(t)
	set := Map([]Definition{{Type: TypeQueue, Address: "q1"}}, testlog.Logger(t))

	addrs := set.Entities(routerconfig.KindAddress)
	want := []routerconfig.Entity{{Name: "ragent-q1", Prefix: "q1", Distribution: "balanced", Waypoint: true}}
	if !reflect.DeepEqual(addrs, want) {
		t.Fatalf("addresses: got=%+v want=%+v", addrs, want)
	}
	links := set.Entities(routerconfig.KindAutolink)
	wantLinks := []routerconfig.Entity{
		{Name: "ragent-q1-in", Addr: "q1", Direction: "in", ContainerID: "q1"},
		{Name: "ragent-q1-out", Addr: "q1", Direction: "out", ContainerID: "q1"},
	}
	if !reflect.DeepEqual(links, wantLinks) {
		t.Fatalf("autolinks: got=%+v want=%+v", links, wantLinks)
	}
	if set.Len(routerconfig.KindLinkroute) != 0 {
		t.Fatalf("queue must not produce linkroutes")
	}
}

func TestMapEveryType(t *testing.T) {
	testlog.Start(t)
	set := Map([]Definition{
		{Type: TypeMulticast, Address: "m"},
		{Type: TypeTopic, Address: "t"},
		{Type: TypeAnycast, Address: "a"},
		{Type: "subscription", Address: "ignored"},
	}, testlog.Logger(t))

	addrs := set.Entities(routerconfig.KindAddress)
	if len(addrs) != 2 {
		t.Fatalf("expected 2 addresses, got %+v", addrs)
	}
	// sorted by prefix
	if addrs[0].Prefix != "a" || addrs[0].Distribution != "balanced" || addrs[0].Waypoint {
		t.Fatalf("anycast mapping: %+v", addrs[0])
	}
	if addrs[1].Prefix != "m" || addrs[1].Distribution != "multicast" || addrs[1].Waypoint {
		t.Fatalf("multicast mapping: %+v", addrs[1])
	}
	routes := set.Entities(routerconfig.KindLinkroute)
	if len(routes) != 2 || routes[0].Name != "ragent-t-in" || routes[1].Name != "ragent-t-out" || routes[0].ContainerID != "t" {
		t.Fatalf("topic mapping: %+v", routes)
	}
	if set.Size() != 4 {
		t.Fatalf("unexpected size: %d", set.Size())
	}
	if err := set.Validate(); err != nil {
		t.Fatalf("mapped set invalid: %v", err)
	}
}

func TestValidateDefinitions(t *testing.T) {
	testlog.Start(t)
	if err := Validate([]Definition{{Type: TypeQueue, Address: "q"}, {Type: TypeTopic, Address: "t"}}); err != nil {
		t.Fatalf("validate: %v", err)
	}
	cases := [][]Definition{
		{{Type: TypeQueue, Address: " "}},
		{{Type: "fifo", Address: "q"}},
		{{Type: TypeQueue, Address: "q"}, {Type: TypeAnycast, Address: "q"}},
	}
	for _, defs := range cases {
		if err := Validate(defs); !errors.Is(err, ErrInvalidDefinition) {
			t.Fatalf("expected ErrInvalidDefinition for %+v, got %v", defs, err)
		}
	}
}
