package entity_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/alias"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/entity"
)

func TestDriver(t *testing.T) {
	Convey("Given the default normalizer", t, func() {
		n := entity.New(nil)

		Convey("When names match variants or codes", func() {
			So(n.Driver("Verstappen"), ShouldEqual, "max_verstappen")
			So(n.Driver("VER"), ShouldEqual, "max_verstappen")
			So(n.Driver("Hamilton"), ShouldEqual, "hamilton")
			So(n.Driver("Lewis  Hamilton!"), ShouldEqual, "hamilton")
			So(n.Driver("msc"), ShouldEqual, "mick_schumacher")
		})

		Convey("When the name carries diacritics", func() {
			So(n.Driver("Sergio Pérez"), ShouldEqual, "perez")
			So(n.Driver("Pérez"), ShouldEqual, "perez")
			So(n.Driver("Kimi Räikkönen"), ShouldEqual, "raikkonen")
			So(n.Driver("Nico Hülkenberg"), ShouldEqual, "hulkenberg")
			So(n.Circuit("Autódromo José Carlos Pace"), ShouldEqual, "interlagos")
			So(n.Driver("Sergio Pérez"), ShouldEqual, n.Driver("Sergio Perez"))
		})

		Convey("When the name is an initial plus surname", func() {
			So(n.Driver("M. Schumacher"), ShouldEqual, "michael_schumacher")
			So(n.Driver("L Hamilton"), ShouldEqual, "hamilton")
		})

		Convey("When the name is unknown", func() {
			So(n.Driver("Juan Manuel Fangio"), ShouldEqual, "juan_manuel_fangio")
			So(n.Driver("   "), ShouldEqual, "")
			So(n.Known(alias.KindDriver, "Juan Manuel Fangio"), ShouldBeFalse)
		})

		Convey("Then normalization is idempotent", func() {
			for _, in := range []string{"VER", "M. Schumacher", "Lewis Hamilton", "Juan Manuel Fangio", "zzz", "x schumacher"} {
				once := n.Driver(in)
				So(n.Driver(once), ShouldEqual, once)
			}
		})
	})
}

func TestCircuitAndConstructor(t *testing.T) {
	Convey("Given the default normalizer", t, func() {
		n := entity.New(nil)

		Convey("Then circuits resolve by variant and containment", func() {
			So(n.Circuit("Monte Carlo"), ShouldEqual, "monaco")
			So(n.Circuit("the Circuit of the Americas layout"), ShouldEqual, "americas")
			So(n.Circuit("Spa-Francorchamps"), ShouldEqual, "spa")
			So(n.Circuit("Nürburgring"), ShouldEqual, "nurburgring")
		})

		Convey("Then constructors resolve by variant and containment", func() {
			So(n.Constructor("Scuderia Ferrari"), ShouldEqual, "ferrari")
			So(n.Constructor("Red Bull Racing Honda RBPT"), ShouldEqual, "red_bull")
			So(n.Constructor("Red Bull"), ShouldEqual, "red_bull")
			So(n.Known(alias.KindConstructor, "McLaren"), ShouldBeTrue)
			So(n.Known(alias.KindConstructor, "Hamilton"), ShouldBeFalse)
		})

		Convey("Then Canonical dispatches by kind", func() {
			So(n.Canonical(alias.KindDriver, "ham"), ShouldEqual, "hamilton")
			So(n.Canonical(alias.KindConstructor, "merc"), ShouldEqual, "mercedes")
			So(n.Canonical(alias.KindCircuit, "COTA"), ShouldEqual, "americas")
		})

		Convey("Then place normalization is idempotent", func() {
			for _, in := range []string{"Monte Carlo", "Unknown Ring", "Scuderia Ferrari"} {
				So(n.Circuit(n.Circuit(in)), ShouldEqual, n.Circuit(in))
				So(n.Constructor(n.Constructor(in)), ShouldEqual, n.Constructor(in))
			}
		})
	})
}
