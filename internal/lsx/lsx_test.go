package lsx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jchantrell/lspak/internal/codec"
	"github.com/jchantrell/lspak/internal/pak"
	"github.com/jchantrell/lspak/internal/pak/paktest"
)

const sampleMeta = `<?xml version="1.0" encoding="UTF-8"?>
<save>
    <version major="4" minor="0" revision="9" build="331"/>
    <region id="Config">
        <node id="root">
            <children>
                <node id="Dependencies"/>
                <node id="ModuleInfo">
                    <attribute id="Author" type="LSString" value="someone"/>
                    <attribute id="CharacterCreationLevelName" type="FixedString" value=""/>
                    <attribute id="Description" type="LSString" value="An example mod"/>
                    <attribute id="Folder" type="LSString" value="Example"/>
                    <attribute id="Name" type="LSString" value="Example Mod"/>
                    <attribute id="NumPlayers" type="uint8" value="4"/>
                    <attribute id="UUID" type="FixedString" value="a2d5e5a0-29b3-4d3c-9a0c-6ef8b0a6c1f2"/>
                    <attribute id="Version64" type="int64" value="36028797018963968"/>
                    <attribute id="Tags" type="TranslatedString" handle="h12345" value=""/>
                    <children>
                        <node id="PublishVersion">
                            <attribute id="Version64" type="int64" value="1"/>
                        </node>
                    </children>
                </node>
            </children>
        </node>
    </region>
</save>`

func TestParseMeta(t *testing.T) {
	t.Parallel()

	meta, err := ParseMeta([]byte(sampleMeta))
	require.NoError(t, err)
	require.Len(t, meta.Attributes, 9)

	folder, ok := meta.Get("Folder")
	require.True(t, ok)
	assert.Equal(t, "Example", folder.Value.String())

	players, ok := meta.Get("NumPlayers")
	require.True(t, ok)
	assert.Equal(t, uint64(4), players.Value.Uint)

	version, ok := meta.Get("Version64")
	require.True(t, ok)
	assert.Equal(t, int64(36028797018963968), version.Value.Int)

	tags, ok := meta.Get("Tags")
	require.True(t, ok)
	assert.False(t, tags.Value.Type.Recognized())
	assert.Equal(t, "TranslatedString", tags.Value.Type.Name)
	assert.Equal(t, "h12345", tags.Handle)

	required, err := meta.Required()
	require.NoError(t, err)
	require.Len(t, required, 3)
	assert.Equal(t, "Folder", required[0].ID)
	assert.Equal(t, "Name", required[1].ID)
	assert.Equal(t, "UUID", required[2].ID)
	assert.Equal(t, "a2d5e5a0-29b3-4d3c-9a0c-6ef8b0a6c1f2", required[2].Value.Raw)
}

func TestParseMetaBOM(t *testing.T) {
	t.Parallel()

	_, err := ParseMeta(append([]byte("\xef\xbb\xbf"), sampleMeta...))
	assert.NoError(t, err)
}

func TestParseMetaErrors(t *testing.T) {
	t.Parallel()

	_, err := ParseMeta([]byte("not xml <"))
	assert.Error(t, err)

	_, err = ParseMeta([]byte(`<save><region id="Config"><node id="root"><children/></node></region></save>`))
	assert.ErrorIs(t, err, ErrNoModuleInfo)

	_, err = ParseMeta([]byte(`<save><region id="Config"><node id="root"><children><node id="ModuleInfo">
		<attribute id="NumPlayers" type="uint8" value="300"/>
	</node></children></node></region></save>`))
	assert.ErrorIs(t, err, ErrInvalidValue)

	meta, err := ParseMeta([]byte(`<save><region id="Config"><node id="root"><children><node id="ModuleInfo">
		<attribute id="Folder" type="LSString" value="Example"/>
	</node></children></node></region></save>`))
	require.NoError(t, err)
	_, err = meta.Required()
	assert.ErrorIs(t, err, ErrMissingAttribute)
}

func TestParseValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ     string
		raw     string
		wantErr bool
		want    string
	}{
		{"int8", "-128", false, "-128"},
		{"int8", "128", true, ""},
		{"uint8", "255", false, "255"},
		{"uint8", "-1", true, ""},
		{"int16", "32767", false, "32767"},
		{"uint16", "65536", true, ""},
		{"int32", "-2147483648", false, "-2147483648"},
		{"uint32", "4294967295", false, "4294967295"},
		{"int64", "abc", true, ""},
		{"uint64", "18446744073709551615", false, "18446744073709551615"},
		{"bool", "True", false, "True"},
		{"bool", "maybe", true, ""},
		{"guid", "a2d5e5a0-29b3-4d3c-9a0c-6ef8b0a6c1f2", false, "a2d5e5a0-29b3-4d3c-9a0c-6ef8b0a6c1f2"},
		{"guid", "not-a-guid", true, ""},
		{"guid", "A2D5E5A0-29B3-4D3C-9A0C-6EF8B0A6C1F2", false, "A2D5E5A0-29B3-4D3C-9A0C-6EF8B0A6C1F2"},
		{"guid", "{a2d5e5a0-29b3-4d3c-9a0c-6ef8b0a6c1f2}", true, ""},
		{"guid", "a2d5e5a029b34d3c9a0c6ef8b0a6c1f2", true, ""},
		{"guid", "a2d5e5a0-29b3-4d3c-9a0c-6ef8b0a6c1fz", true, ""},
		{"LSString", "anything", false, "anything"},
		{"FixedString", "", false, ""},
		{"SomethingNew", "raw text", false, "raw text"},
	}
	for _, tt := range tests {
		v, err := ParseValue(tt.typ, tt.raw)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidValue, "%s %q", tt.typ, tt.raw)
			continue
		}
		require.NoError(t, err, "%s %q", tt.typ, tt.raw)
		assert.Equal(t, tt.want, v.String(), "%s %q", tt.typ, tt.raw)
	}
}

func TestLookupType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Type{Name: "uint8", Kind: KindUint, Bits: 8}, LookupType("uint8"))
	unknown := LookupType("vec3")
	assert.Equal(t, KindUnrecognized, unknown.Kind)
	assert.Equal(t, "vec3", unknown.Name)
	assert.Equal(t, "unrecognized", unknown.Kind.String())
}

func TestReadModules(t *testing.T) {
	t.Parallel()

	data, err := (&paktest.Builder{
		Version: 18,
		Files: []paktest.File{
			{Path: "Mods/Example/meta.lsx", Data: []byte(sampleMeta), Method: codec.LZ4},
			{Path: "Mods/Example/Story/RawFiles/Goals/Start.txt", Data: []byte("goal")},
		},
	}).Bytes()
	require.NoError(t, err)

	a, err := pak.Open(bytes.NewReader(data))
	require.NoError(t, err)

	modules, err := ReadModules(a)
	require.NoError(t, err)
	require.Len(t, modules, 1)
	assert.Equal(t, "Mods/Example/meta.lsx", modules[0].Path)

	name, ok := modules[0].Meta.Get("Name")
	require.True(t, ok)
	assert.Equal(t, "Example Mod", name.Value.Raw)
}
