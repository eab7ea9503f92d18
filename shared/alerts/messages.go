package alerts

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// RandomSource picks message variants. *rand.Rand satisfies it.
type RandomSource interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int {
	return rand.IntN(n)
}

type fixedSource int

func (f fixedSource) IntN(n int) int {
	return (int(f)%n + n) % n
}

// Fixed returns a source that always picks variant i (modulo pool size)
func Fixed(i int) RandomSource {
	return fixedSource(i)
}

// MessageKind names a message pool
type MessageKind string

const (
	KindWarmSpell    MessageKind = "warm-spell"
	KindTempDrop     MessageKind = "temp-drop"
	KindPressureRise MessageKind = "pressure-rise"
	KindPressureDrop MessageKind = "pressure-drop"
	KindPerfectDay   MessageKind = "perfect-day"
	KindSunrise      MessageKind = "sunrise"
	KindSunset       MessageKind = "sunset"
	KindStargazing   MessageKind = "stargazing"
	KindSnowDay      MessageKind = "snow-fun"
	KindRain         MessageKind = "rain-warning"
	KindHighUV       MessageKind = "uv-warning"
	KindExtremeCold  MessageKind = "cold-warning"
	KindHighWind     MessageKind = "wind-warning"
	KindHeat         MessageKind = "heat-warning"
	KindFog          MessageKind = "fog-interesting"
	KindHighHumidity MessageKind = "humidity-interesting"
	KindPerfectTemp  MessageKind = "perfect-temp"
)

// MessageContext holds the values a message may mention
type MessageContext struct {
	Temperature float64
	TempDiff    float64
	Humidity    float64
	UVIndex     float64
	WindSpeed   float64
	Heavy       bool
	Place       string
}

type variant struct {
	title string
	body  func(c MessageContext) string
}

func round(v float64) int {
	return int(math.Round(v))
}

func intensity(heavy bool) string {
	if heavy {
		return "Heavy"
	}
	return "Light"
}

var pools = map[MessageKind][]variant{
	KindWarmSpell: {
		{"🌡️ Sudden Warm Spell!", func(c MessageContext) string {
			return fmt.Sprintf("%d°C is %d° warmer than usual! Perfect for outdoor adventures!", round(c.Temperature), round(c.TempDiff))
		}},
		{"🌡️ Someone Turned Up the Heat!", func(c MessageContext) string {
			return fmt.Sprintf("%d°C today, a full %d° above the recent average. Leave the jacket at home!", round(c.Temperature), round(c.TempDiff))
		}},
	},
	KindTempDrop: {
		{"🥶 Temperature Drop Alert!", func(c MessageContext) string {
			return fmt.Sprintf("%d°C is %d° cooler than usual! Time to bundle up!", round(c.Temperature), round(c.TempDiff))
		}},
		{"🥶 Brr, Where Did Summer Go?", func(c MessageContext) string {
			return fmt.Sprintf("%d°C, that's %d° below the recent average. Grab an extra layer!", round(c.Temperature), round(c.TempDiff))
		}},
	},
	KindPressureRise: {
		{"📈 High Pressure System!", func(MessageContext) string {
			return "Atmospheric pressure rising significantly! Clear skies ahead!"
		}},
		{"📈 The Barometer Is Climbing!", func(MessageContext) string {
			return "Pressure is up sharply. Settled, sunnier weather is on its way!"
		}},
	},
	KindPressureDrop: {
		{"📉 Low Pressure Alert!", func(MessageContext) string {
			return "Atmospheric pressure dropping significantly! Weather changes coming!"
		}},
		{"📉 The Barometer Is Sinking!", func(MessageContext) string {
			return "Pressure is falling fast. Keep an eye on the sky, change is brewing!"
		}},
	},
	KindPerfectDay: {
		{"🌟 Perfect Weather Alert!", func(c MessageContext) string {
			return fmt.Sprintf("%d°C with clear skies! This is your sign to get outside - picnic, walk, or just soak up the amazing vibes! ☀️", round(c.Temperature))
		}},
		{"🌟 Weather Jackpot!", func(c MessageContext) string {
			return fmt.Sprintf("Clear skies and %d°C in %s. Days like this don't come often, go enjoy it!", round(c.Temperature), c.Place)
		}},
	},
	KindSunrise: {
		{"🌅 Epic Sunrise Alert!", func(MessageContext) string {
			return "Clear skies = spectacular sunrise! Grab your camera and find a good spot - nature's about to put on a show! 📸"
		}},
		{"🌅 Golden Morning Ahead!", func(c MessageContext) string {
			return fmt.Sprintf("Skies over %s are clear for sunrise. Worth setting down the coffee for a few minutes! 📸", c.Place)
		}},
	},
	KindSunset: {
		{"🌅 Epic Sunset Alert!", func(MessageContext) string {
			return "Clear skies = spectacular sunset! Grab your camera and find a good spot - nature's about to put on a show! 📸"
		}},
		{"🌇 Golden Hour Incoming!", func(c MessageContext) string {
			return fmt.Sprintf("Skies over %s are clear for sunset. Find a west-facing view and enjoy the show! 📸", c.Place)
		}},
	},
	KindStargazing: {
		{"⭐ Stargazing Paradise!", func(MessageContext) string {
			return "Crystal clear skies tonight! Perfect for stargazing - grab a blanket and look up! The universe is calling! 🌌"
		}},
		{"🔭 Clear Night Skies!", func(MessageContext) string {
			return "Not a cloud in sight tonight. Step away from the lights and count some stars! 🌌"
		}},
	},
	KindSnowDay: {
		{"❄️ Snow Day Magic!", func(MessageContext) string {
			return "Fresh snow falling! Time for snowball fights, snow angels, or just enjoying the winter wonderland! Bundle up and have fun! ⛄"
		}},
		{"⛄ Snowman Weather!", func(c MessageContext) string {
			return fmt.Sprintf("Snow is coming down at %d°C. Mittens on, it's time to build something! ⛄", round(c.Temperature))
		}},
	},
	KindRain: {
		{"☔ Rain Alert!", func(c MessageContext) string {
			return fmt.Sprintf("%s rain detected! Don't forget your umbrella and maybe waterproof shoes. Puddle jumping is optional but encouraged! 🌧️", intensity(c.Heavy))
		}},
		{"☔ Umbrella Squad Assemble!", func(c MessageContext) string {
			return fmt.Sprintf("%s rain over %s. Keep an umbrella within reach today! 🌧️", intensity(c.Heavy), c.Place)
		}},
	},
	KindHighUV: {
		{"🕶️ UV Alert!", func(c MessageContext) string {
			return fmt.Sprintf("UV index is %g! Time for sunscreen, sunglasses, and a hat. Your future self will thank you for the sun protection! ☀️", c.UVIndex)
		}},
		{"🕶️ Sunscreen O'Clock!", func(c MessageContext) string {
			return fmt.Sprintf("The UV index has hit %g. Cover up and reapply sunscreen every couple of hours! ☀️", c.UVIndex)
		}},
	},
	KindExtremeCold: {
		{"🥶 Extreme Cold Alert!", func(c MessageContext) string {
			return fmt.Sprintf("%d°C is seriously cold! Layer up like an onion, cover exposed skin, and maybe have some hot cocoa ready! Stay warm! 🧥", round(c.Temperature))
		}},
		{"🧊 Deep Freeze!", func(c MessageContext) string {
			return fmt.Sprintf("It's %d°C out there. Hats, gloves and scarves are mandatory today! 🧥", round(c.Temperature))
		}},
	},
	KindHighWind: {
		{"💨 Windy Conditions!", func(c MessageContext) string {
			return fmt.Sprintf("%d km/h winds! Hold onto your hat, secure loose items, and maybe skip the umbrella today. Nature's having a blustery day! 🌪️", round(c.WindSpeed))
		}},
		{"💨 Hold Onto Your Hat!", func(c MessageContext) string {
			return fmt.Sprintf("Gusts around %d km/h. Tie down anything that might fly away! 🌪️", round(c.WindSpeed))
		}},
	},
	KindHeat: {
		{"🔥 Heat Wave Alert!", func(c MessageContext) string {
			return fmt.Sprintf("%d°C is sizzling! Stay hydrated, seek shade, and maybe save outdoor activities for later. Your AC is your best friend today! 🧊", round(c.Temperature))
		}},
		{"🔥 Sizzle Alert: Heat Incoming!", func(c MessageContext) string {
			return fmt.Sprintf("%d°C in %s. Drink water, stay in the shade and let your AC shine! 🧊", round(c.Temperature), c.Place)
		}},
	},
	KindFog: {
		{"🌫️ Mysterious Fog!", func(MessageContext) string {
			return "Foggy conditions creating a mystical atmosphere! Drive carefully but enjoy the ethereal vibes - it's like being in a movie! 👻"
		}},
		{"🌫️ Into the Mist!", func(MessageContext) string {
			return "Visibility is low in the fog. Take it slow on the roads and enjoy the moody scenery! 👻"
		}},
	},
	KindHighHumidity: {
		{"💧 Tropical Vibes!", func(c MessageContext) string {
			return fmt.Sprintf("%g%% humidity is giving major tropical feels! Your hair might have its own plans today, but embrace the natural volume! 🌴", c.Humidity)
		}},
		{"💧 Sticky Situation!", func(c MessageContext) string {
			return fmt.Sprintf("Humidity at %g%% and %d°C. Light clothes and plenty of water today! 🌴", c.Humidity, round(c.Temperature))
		}},
	},
	KindPerfectTemp: {
		{"🌡️ Goldilocks Temperature!", func(c MessageContext) string {
			return fmt.Sprintf("%d°C - not too hot, not too cold, just perfect! This is the temperature that makes everyone happy. Enjoy this rare gift! ✨", round(c.Temperature))
		}},
		{"🌡️ Just Right!", func(c MessageContext) string {
			return fmt.Sprintf("A perfectly balanced %d°C. No jacket, no fan, just comfort! ✨", round(c.Temperature))
		}},
	},
}

// Compose returns the title and message for kind, picking the variant with rnd.
// Variant 0 of every pool is the canonical wording.
func Compose(kind MessageKind, c MessageContext, rnd RandomSource) (string, string) {
	pool, ok := pools[kind]
	if !ok || len(pool) == 0 {
		return strings.ReplaceAll(string(kind), "-", " "), ""
	}
	if c.Place == "" {
		c.Place = "your area"
	}

	idx := 0
	if rnd != nil && len(pool) > 1 {
		idx = rnd.IntN(len(pool))
	}
	v := pool[idx]
	return v.title, v.body(c)
}
