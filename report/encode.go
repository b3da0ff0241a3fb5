package report

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	loadererrors "github.com/wippyai/npdm-loader/errors"
)

// Format selects a report encoding.
type Format string

const (
	FormatText Format = "text"
	FormatYAML Format = "yaml"
	FormatCBOR Format = "cbor"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatYAML, FormatCBOR:
		return f, nil
	}
	return "", loadererrors.InvalidInput(loadererrors.PhaseEncode,
		fmt.Sprintf("unknown report format %q (want text, yaml or cbor)", s))
}

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2) so equal
// reports encode to identical bytes.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("report: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("report: CBOR decoder initialization failed: " + err.Error())
	}
}

// YAML encodes the report as YAML.
func (r *Report) YAML() ([]byte, error) {
	return yaml.Marshal(r)
}

// CBOR encodes the report as deterministic CBOR.
func (r *Report) CBOR() ([]byte, error) {
	return encMode.Marshal(r)
}

// DecodeCBOR decodes a report produced by CBOR.
func DecodeCBOR(data []byte) (*Report, error) {
	var r Report
	if err := decMode.Unmarshal(data, &r); err != nil {
		return nil, loadererrors.Wrap(loadererrors.PhaseEncode, loadererrors.KindInvalidInput, err, "decode report")
	}
	return &r, nil
}

// Write encodes r to w in the given format. Text output is styled when w
// is a colour-capable terminal.
func Write(w io.Writer, r *Report, format Format) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatText:
		_, err = io.WriteString(w, r.Text(w))
		return err
	case FormatYAML:
		data, err = r.YAML()
	case FormatCBOR:
		data, err = r.CBOR()
	default:
		_, err = ParseFormat(string(format))
		return err
	}
	if err != nil {
		return loadererrors.Wrap(loadererrors.PhaseEncode, loadererrors.KindInvalidInput, err, "encode report")
	}
	_, err = w.Write(data)
	return err
}
