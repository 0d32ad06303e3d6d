package talkwire

import "testing"

func msg(sender, content string) Message {
	return Message{ID: clientMessageID(), SenderID: Identifier(sender), Content: content}
}

func TestStoreReadUnknownKey(t *testing.T) {
	s := NewStore()
	got := s.Read(ConversationKey{Kind: KindPrivate, ID: "7"})
	if len(got) != 0 {
		t.Fatalf("expected empty log, got %d messages", len(got))
	}
}

func TestStoreAppendCreatesLog(t *testing.T) {
	s := NewStore()
	key := ConversationKey{Kind: KindGroup, ID: "42"}

	s.Append(key, msg("1", "hello"))
	s.Append(key, msg("2", "hi"))

	got := s.Read(key)
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Content != "hello" || got[1].Content != "hi" {
		t.Fatalf("append order not preserved: %+v", got)
	}
}

func TestStoreReplaceOverwrites(t *testing.T) {
	s := NewStore()
	key := ConversationKey{Kind: KindPrivate, ID: "9"}

	s.Append(key, msg("1", "m1"))
	s.Replace(key, []Message{msg("2", "m2")})

	got := s.Read(key)
	if len(got) != 1 {
		t.Fatalf("expected replace to discard prior contents, got %d messages", len(got))
	}
	if got[0].Content != "m2" {
		t.Fatalf("expected [m2], got %+v", got)
	}
}

func TestStoreKeysDistinguishKind(t *testing.T) {
	s := NewStore()
	s.Append(ConversationKey{Kind: KindPrivate, ID: "5"}, msg("1", "direct"))
	s.Append(ConversationKey{Kind: KindGroup, ID: "5"}, msg("1", "broadcast"))

	if got := s.Read(ConversationKey{Kind: KindPrivate, ID: "5"}); len(got) != 1 || got[0].Content != "direct" {
		t.Fatalf("private log polluted: %+v", got)
	}
	if got := s.Read(ConversationKey{Kind: KindGroup, ID: "5"}); len(got) != 1 || got[0].Content != "broadcast" {
		t.Fatalf("group log polluted: %+v", got)
	}
}

func TestStoreReadReturnsCopy(t *testing.T) {
	s := NewStore()
	key := ConversationKey{Kind: KindGroup, ID: "1"}
	s.Append(key, msg("1", "original"))

	got := s.Read(key)
	got[0].Content = "mutated"

	if again := s.Read(key); again[0].Content != "original" {
		t.Fatal("Read must not expose the internal log")
	}
}

func TestStoreReplaceCopiesInput(t *testing.T) {
	s := NewStore()
	key := ConversationKey{Kind: KindGroup, ID: "1"}
	in := []Message{msg("1", "original")}
	s.Replace(key, in)

	in[0].Content = "mutated"

	if got := s.Read(key); got[0].Content != "original" {
		t.Fatal("Replace must copy the caller's slice")
	}
}

func TestStoreClearDropsEverything(t *testing.T) {
	s := NewStore()
	k1 := ConversationKey{Kind: KindPrivate, ID: "1"}
	k2 := ConversationKey{Kind: KindGroup, ID: "2"}
	s.Append(k1, msg("1", "a"))
	s.Append(k2, msg("2", "b"))

	s.Clear()

	if s.Len(k1) != 0 || s.Len(k2) != 0 {
		t.Fatal("Clear left messages behind")
	}
}
