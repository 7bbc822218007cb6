// Binary descriptor records.
//
// A record starts with a 16-bit tag. With the high bit set the low 15 bits
// are the record version. Without it the record is a legacy unversioned one
// and the tag itself is the placement value. Productivity carries a second
// marker: its high bit set means the value is the total for the building; an
// unset bit means a per-tile value from before that convention, which is
// multiplied by the footprint area on load.
package descriptor

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/talgya/mini-industry/internal/economy"
	"github.com/talgya/mini-industry/internal/world"
)

const (
	versionFlag      = 0x8000
	totalProdFlag    = 0x8000
	currentVersion   = 2
	flagElectricity  = 0x01
	pakMagic         = "FSPK"
	maxStringLen     = 255
	maxUint16        = 0xFFFF
	maxProductivity  = 0x7FFF
	legacyAllClimate = world.AllClimates
)

// ErrBadRecord is returned for truncated or inconsistent records.
var ErrBadRecord = errors.New("bad descriptor record")

type recordWriter struct {
	w   io.Writer
	err error
}

func (rw *recordWriter) put(v any) {
	if rw.err != nil {
		return
	}
	rw.err = binary.Write(rw.w, binary.LittleEndian, v)
}

func (rw *recordWriter) u16(name string, v int) {
	if rw.err != nil {
		return
	}
	if v < 0 || v > maxUint16 {
		rw.err = fmt.Errorf("%s=%d out of range: %w", name, v, ErrBadRecord)
		return
	}
	rw.put(uint16(v))
}

func (rw *recordWriter) u8(name string, v int) {
	if rw.err != nil {
		return
	}
	if v < 0 || v > 0xFF {
		rw.err = fmt.Errorf("%s=%d out of range: %w", name, v, ErrBadRecord)
		return
	}
	rw.put(uint8(v))
}

func (rw *recordWriter) str(s string) {
	if len(s) > maxStringLen {
		rw.err = fmt.Errorf("string %q too long: %w", s, ErrBadRecord)
		return
	}
	rw.u8("len", len(s))
	if rw.err == nil {
		_, rw.err = io.WriteString(rw.w, s)
	}
}

// WriteRecord encodes f in the current record version.
func WriteRecord(w io.Writer, f *Factory) error {
	rw := &recordWriter{w: w}
	if f.Productivity > maxProductivity {
		return fmt.Errorf("productivity %d out of range: %w", f.Productivity, ErrBadRecord)
	}
	rw.put(uint16(versionFlag | currentVersion))
	rw.u8("placement", int(f.Placement))
	rw.put(uint16(totalProdFlag | f.Productivity))
	rw.u16("range", f.Range)
	rw.u16("chance", f.Chance)
	rw.u8("w", f.Size.W)
	rw.u8("h", f.Size.H)
	rw.put(uint16(f.Climates))
	flags := 0
	if f.ElectricityProducer {
		flags |= flagElectricity
	}
	rw.u8("flags", flags)
	rw.u16("electric_boost", f.ElectricBoost)
	rw.u16("pax_boost", f.PaxBoost)
	rw.u16("mail_boost", f.MailBoost)
	rw.u16("electric_demand", f.ElectricDemand)
	rw.u16("pax_demand", f.PaxDemand)
	rw.u16("mail_demand", f.MailDemand)
	rw.u16("expand_probability", f.ExpandProbability)
	rw.u16("expand_minimum", f.ExpandMinimum)
	rw.u16("expand_range", f.ExpandRange)
	rw.u16("expand_times", f.ExpandTimes)
	rw.u8("supplies", len(f.Supplies))
	rw.u8("products", len(f.Products))
	rw.str(f.Name)
	for _, s := range f.Supplies {
		rw.str(string(s.Goods))
		rw.u16("capacity", s.Capacity)
		rw.u16("consumption", s.Consumption)
	}
	for _, p := range f.Products {
		rw.str(string(p.Goods))
		rw.u16("capacity", p.Capacity)
		rw.u16("factor", p.Factor)
	}
	if !f.HasFields() {
		rw.u8("field_classes", 0)
		return rw.err
	}
	rw.u8("field_classes", len(f.Fields.Classes))
	rw.u16("field_probability", f.Fields.Probability)
	rw.u16("max_fields", f.Fields.MaxFields)
	rw.u16("min_fields", f.Fields.MinFields)
	rw.u16("start_fields", f.Fields.StartFields)
	for _, fc := range f.Fields.Classes {
		rw.str(fc.Name)
		rw.u16("field_production", fc.Production)
		rw.u16("field_capacity", fc.Capacity)
		rw.u16("field_weight", fc.Weight)
	}
	return rw.err
}

type recordReader struct {
	r   io.Reader
	err error
}

func (rr *recordReader) u16() int {
	var v uint16
	if rr.err == nil {
		rr.err = binary.Read(rr.r, binary.LittleEndian, &v)
	}
	return int(v)
}

func (rr *recordReader) u8() int {
	var v uint8
	if rr.err == nil {
		rr.err = binary.Read(rr.r, binary.LittleEndian, &v)
	}
	return int(v)
}

func (rr *recordReader) str() string {
	n := rr.u8()
	if rr.err != nil {
		return ""
	}
	b := make([]byte, n)
	_, rr.err = io.ReadFull(rr.r, b)
	return string(b)
}

// ReadRecord decodes one record of any supported version. io.EOF is
// returned untouched when the stream ends cleanly before a record.
func ReadRecord(r io.Reader) (*Factory, error) {
	rr := &recordReader{r: r}
	tag := rr.u16()
	if rr.err != nil {
		if errors.Is(rr.err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read tag: %w", rr.err)
	}

	f := &Factory{}
	version := 0
	if tag&versionFlag != 0 {
		version = tag &^ versionFlag
		if version < 1 || version > currentVersion {
			return nil, fmt.Errorf("record version %d: %w", version, ErrBadRecord)
		}
		f.Placement = Placement(rr.u8())
	} else {
		f.Placement = Placement(tag)
	}

	prod := rr.u16()
	f.Range = rr.u16()
	f.Chance = rr.u16()
	f.Size = world.Size{W: rr.u8(), H: rr.u8()}

	if version == 0 {
		f.Climates = legacyAllClimate
	} else {
		f.Climates = world.ClimateSet(rr.u16())
		f.ElectricityProducer = rr.u8()&flagElectricity != 0
		f.ElectricBoost = rr.u16()
		f.PaxBoost = rr.u16()
		f.MailBoost = rr.u16()
	}
	if version >= 2 {
		f.ElectricDemand = rr.u16()
		f.PaxDemand = rr.u16()
		f.MailDemand = rr.u16()
		f.ExpandProbability = rr.u16()
		f.ExpandMinimum = rr.u16()
		f.ExpandRange = rr.u16()
		f.ExpandTimes = rr.u16()
	}

	nSupplies := rr.u8()
	nProducts := rr.u8()
	f.Name = rr.str()
	for i := 0; i < nSupplies && rr.err == nil; i++ {
		f.Supplies = append(f.Supplies, Supply{
			Goods:       economy.GoodsID(rr.str()),
			Capacity:    rr.u16(),
			Consumption: rr.u16(),
		})
	}
	for i := 0; i < nProducts && rr.err == nil; i++ {
		f.Products = append(f.Products, Product{
			Goods:    economy.GoodsID(rr.str()),
			Capacity: rr.u16(),
			Factor:   rr.u16(),
		})
	}
	if version >= 2 {
		if n := rr.u8(); n > 0 {
			fg := &FieldGroup{
				Probability: rr.u16(),
				MaxFields:   rr.u16(),
				MinFields:   rr.u16(),
				StartFields: rr.u16(),
			}
			for i := 0; i < n && rr.err == nil; i++ {
				fg.Classes = append(fg.Classes, FieldClass{
					Name:       rr.str(),
					Production: rr.u16(),
					Capacity:   rr.u16(),
					Weight:     rr.u16(),
				})
			}
			f.Fields = fg
		}
	}
	if rr.err != nil {
		return nil, fmt.Errorf("record %q: %v: %w", f.Name, rr.err, ErrBadRecord)
	}

	if prod&totalProdFlag != 0 {
		f.Productivity = prod &^ totalProdFlag
	} else {
		f.Productivity = prod * f.Size.Area()
	}
	return f, nil
}

// WritePak writes a pak file: magic, record count and the records.
func WritePak(w io.Writer, factories []*Factory) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(pakMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint16(len(factories))); err != nil {
		return err
	}
	for _, f := range factories {
		if err := WriteRecord(bw, f); err != nil {
			return fmt.Errorf("write %q: %w", f.Name, err)
		}
	}
	return bw.Flush()
}

// ReadPak reads every record of a pak file into the catalog. Records that
// fail validation are reported together; valid ones are still added.
func ReadPak(r io.Reader, c *Catalog) (int, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(pakMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return 0, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != pakMagic {
		return 0, fmt.Errorf("magic %q: %w", magic, ErrBadRecord)
	}
	var count uint16
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return 0, fmt.Errorf("read count: %w", err)
	}
	added := 0
	var errs []error
	for i := 0; i < int(count); i++ {
		f, err := ReadRecord(br)
		if err != nil {
			return added, fmt.Errorf("record %d: %w", i, err)
		}
		if err := c.Add(f); err != nil {
			errs = append(errs, err)
			continue
		}
		added++
	}
	return added, errors.Join(errs...)
}
