package pghmri

import "fmt"

// historyKeys returns both spellings of entry i; older datasets omit the
// zero padding.
func historyKeys(i int) (plain, padded string) {
	return fmt.Sprintf("history.%d", i), fmt.Sprintf("history.%03d", i)
}

func (f *File) history(i int) (string, bool) {
	plain, padded := historyKeys(i)
	if v, ok := f.keys[plain]; ok {
		return v, true
	}
	v, ok := f.keys[padded]
	return v, ok
}

// AddHistory appends entry as the first free history.NNN key, counting
// from 1.
func (f *File) AddHistory(entry string) error {
	i := 1
	for {
		if _, ok := f.history(i); !ok {
			break
		}
		i++
	}
	_, padded := historyKeys(i)
	return f.SetString(padded, entry)
}

// History returns the history entries in order.
func (f *File) History() []string {
	var out []string
	for i := 1; ; i++ {
		v, ok := f.history(i)
		if !ok {
			return out
		}
		out = append(out, v)
	}
}
