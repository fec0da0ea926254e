package chartopts

import "github.com/dalemusser/stratachart/internal/domain/models"

// Domestic builds the catalog for the national dashboard. When liveFirst is
// set the confirmed tab opens on the live chart.
func Domestic(t Translate, liveFirst bool) *Catalog {
	confirmedType := models.TypeDaily
	if liveFirst {
		confirmedType = models.TypeLive
	}

	c, err := New(
		Definition{
			Main:  models.MainConfirmed,
			Label: t("stat.confirmed"),
			Options: Offers{
				models.SubType:    TypeOffer(t, GenerateOpts{Omit: []string{models.TypeAccumulated}}),
				models.SubRange:   RangeOffer(t, GenerateOpts{}),
				models.SubCompare: Off(),
			},
			Defaults: map[models.SubOption]string{models.SubType: confirmedType},
			Overrides: []OverrideRule{
				{
					When:   models.SubType,
					Equals: models.TypeLive,
					Options: Offers{
						models.SubCompare: CompareOffer(t, models.AllCompareWindows...),
						models.SubRange:   Off(),
					},
				},
			},
		},
		Definition{
			Main:  models.MainConfirmedCritical,
			Label: t("stat.confirmed_critical"),
			Options: Offers{
				models.SubType: TypeOffer(t, GenerateOpts{
					Omit: []string{models.TypeLive, models.TypeAccumulated, models.TypeMonthly},
				}),
				models.SubRange: RangeOffer(t, GenerateOpts{Disable: []string{models.RangeAll}}),
			},
		},
		Definition{
			Main:  models.MainDeceased,
			Label: t("stat.deceased"),
			Options: Offers{
				models.SubType: TypeOffer(t, GenerateOpts{
					Omit: []string{models.TypeLive, models.TypeAccumulated},
				}),
				models.SubRange: RangeOffer(t, GenerateOpts{}),
			},
		},
		Definition{
			Main:  models.MainTested,
			Label: t("stat.tested"),
			Options: Offers{
				models.SubType: TypeOffer(t, GenerateOpts{
					Omit: []string{models.TypeLive, models.TypeAccumulated, models.TypeMonthly},
				}),
				models.SubRange: RangeOffer(t, GenerateOpts{Disable: []string{models.RangeAll}}),
			},
		},
	)
	if err != nil {
		// Definitions above are static; a failure here is a programming error.
		panic(err)
	}
	return c
}
