package segmenter

// ChapterMap is an insertion-ordered mapping from chapter name to chapter text.
// Setting an existing name replaces its text but keeps its original position.
type ChapterMap struct {
	names  []string
	bodies map[string]string
}

// NewChapterMap returns an empty ChapterMap.
func NewChapterMap() ChapterMap {
	return ChapterMap{bodies: make(map[string]string)}
}

// Set stores body under name. The last write for a name wins.
func (m *ChapterMap) Set(name, body string) {
	if m.bodies == nil {
		m.bodies = make(map[string]string)
	}
	if _, ok := m.bodies[name]; !ok {
		m.names = append(m.names, name)
	}
	m.bodies[name] = body
}

// Get returns the text stored under name.
func (m ChapterMap) Get(name string) (string, bool) {
	body, ok := m.bodies[name]
	return body, ok
}

// Len returns the number of chapters.
func (m ChapterMap) Len() int {
	return len(m.names)
}

// Names returns the chapter names in order of first appearance.
func (m ChapterMap) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Map returns a copy of the chapters as a plain map, which is how they are persisted.
func (m ChapterMap) Map() map[string]string {
	out := make(map[string]string, len(m.bodies))
	for name, body := range m.bodies {
		out[name] = body
	}
	return out
}
