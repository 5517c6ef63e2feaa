package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/ridepass/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services. Field
// names follow the JSON tags so the default resolver reads domain structs
// directly.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	namedPlaceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "NamedPlace",
		Fields: graphql.Fields{
			"name":     &graphql.Field{Type: graphql.String},
			"location": &graphql.Field{Type: coordinateType},
		},
	})

	hotspotType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Hotspot",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.Int},
			"name":           &graphql.Field{Type: graphql.String},
			"location":       &graphql.Field{Type: coordinateType},
			"provider_count": &graphql.Field{Type: graphql.Int},
			"status":         &graphql.Field{Type: graphql.String},
		},
	})

	providerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Provider",
		Fields: graphql.Fields{
			"id":              &graphql.Field{Type: graphql.String},
			"name":            &graphql.Field{Type: graphql.String},
			"vehicle_label":   &graphql.Field{Type: graphql.String},
			"location":        &graphql.Field{Type: coordinateType},
			"seats_available": &graphql.Field{Type: graphql.Int},
			"rating":          &graphql.Field{Type: graphql.Float},
			"is_online":       &graphql.Field{Type: graphql.Boolean},
			"updated_at":      &graphql.Field{Type: graphql.DateTime},
			"current_route": &graphql.Field{Type: graphql.NewObject(graphql.ObjectConfig{
				Name: "ProviderRoute",
				Fields: graphql.Fields{
					"pickup": &graphql.Field{Type: namedPlaceType},
					"drop":   &graphql.Field{Type: namedPlaceType},
				},
			})},
		},
	})

	bookingType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Booking",
		Fields: graphql.Fields{
			"provider":    &graphql.Field{Type: providerType},
			"destination": &graphql.Field{Type: graphql.String},
			"pickup":      &graphql.Field{Type: hotspotType},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"id": &graphql.Field{Type: graphql.String},
			"access": &graphql.Field{Type: graphql.NewObject(graphql.ObjectConfig{
				Name: "AccessState",
				Fields: graphql.Fields{
					"phase": &graphql.Field{Type: graphql.String},
					"demo":  &graphql.Field{Type: graphql.Boolean},
				},
			})},
			"location":   &graphql.Field{Type: coordinateType},
			"map_center": &graphql.Field{Type: coordinateType},
			"simulating": &graphql.Field{Type: graphql.Boolean},
			"screen": &graphql.Field{Type: graphql.NewObject(graphql.ObjectConfig{
				Name: "ScreenView",
				Fields: graphql.Fields{
					"screen":      &graphql.Field{Type: graphql.String},
					"destination": &graphql.Field{Type: graphql.String},
					"pickup":      &graphql.Field{Type: hotspotType},
					"focus":       &graphql.Field{Type: providerType},
					"booking":     &graphql.Field{Type: bookingType},
				},
			})},
			"feed": &graphql.Field{Type: graphql.NewObject(graphql.ObjectConfig{
				Name: "FeedSnapshot",
				Fields: graphql.Fields{
					"hotspots":   &graphql.Field{Type: graphql.NewList(hotspotType)},
					"providers":  &graphql.Field{Type: graphql.NewList(providerType)},
					"loading":    &graphql.Field{Type: graphql.Boolean},
					"updated_at": &graphql.Field{Type: graphql.DateTime},
				},
			})},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"hotspots": &graphql.Field{
				Type:        graphql.NewList(hotspotType),
				Description: "List all hotspots",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Hotspots.List(p.Context)
				},
			},
			"hotspot": &graphql.Field{
				Type:        hotspotType,
				Description: "Get a hotspot by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(int)
					return deps.Hotspots.GetByID(p.Context, int64(id))
				},
			},
			"providers": &graphql.Field{
				Type:        graphql.NewList(providerType),
				Description: "List online providers",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Providers.ListOnline(p.Context)
				},
			},
			"provider": &graphql.Field{
				Type:        providerType,
				Description: "Get a provider by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Providers.GetByID(p.Context, id)
				},
			},
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "Current state of a rider session",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					sess, err := deps.Sessions.Get(p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return sess.View(), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"updateProviderLocation": &graphql.Field{
				Type:        providerType,
				Description: "Move a provider; riders on the map see the change",
				Args: graphql.FieldConfigArgument{
					"id":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					loc := domain.Coordinate{Lat: p.Args["lat"].(float64), Lon: p.Args["lon"].(float64)}
					if err := deps.Providers.UpdateLocation(p.Context, id, loc); err != nil {
						return nil, err
					}
					return deps.Providers.GetByID(p.Context, id)
				},
			},
			"sendEvent": &graphql.Field{
				Type:        sessionType,
				Description: "Apply a navigation event to a rider session",
				Args: graphql.FieldConfigArgument{
					"session_id":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"event":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"hotspot_id":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"provider_id": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"destination": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					sess, err := deps.Sessions.Get(p.Args["session_id"].(string))
					if err != nil {
						return nil, err
					}
					return dispatchEvent(p.Context, sess, eventRequest{
						Event:       p.Args["event"].(string),
						HotspotID:   int64(p.Args["hotspot_id"].(int)),
						ProviderID:  p.Args["provider_id"].(string),
						Destination: p.Args["destination"].(string),
					})
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// A schema error is a programming error.
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})
		if result.HasErrors() {
			LoggerFromCtx(c.UserContext()).Warn("graphql errors", "count", len(result.Errors))
		}

		return c.JSON(result)
	}
}
