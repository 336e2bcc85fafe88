package session

import "testing"

// FuzzDecodeUser exercises the snapshot decoder with arbitrary inputs.
func FuzzDecodeUser(f *testing.F) {
	encoded, err := EncodeUser(&UserProfile{ID: "u1", FullName: "Asha", Role: RoleStudent})
	if err == nil {
		f.Add(encoded)
		f.Add(encoded[:len(encoded)/2])
	}
	f.Add([]byte{})
	f.Add([]byte("{}"))
	f.Add([]byte(`{"v":2,"user":{}}`))
	f.Add([]byte(`{"_id":"x","role":"faculty","extra":[1,2]}`))
	f.Add([]byte("null"))

	f.Fuzz(func(t *testing.T, data []byte) {
		u, _, err := DecodeUser(data)
		if err != nil {
			return
		}
		if u == nil {
			t.Fatalf("nil user without error")
		}
		if _, err := EncodeUser(u); err != nil {
			t.Fatalf("re-encode decoded user: %v", err)
		}
	})
}
